package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go-fairdice/internal/lib/fair"
)

// Offline verification tool: anyone holding a revealed seed can re-derive a
// round's commitment and digits without access to the platform's storage.
func main() {
	var (
		seed       = flag.String("seed", "", "revealed server seed")
		roundID    = flag.String("round", "", "round id")
		clientSeed = flag.String("client", "", "optional client seed")
		expected   = flag.String("digits", "", "optional expected digits, comma separated")
		count      = flag.Int("n", fair.DefaultDigitCount, "number of digits to derive")
	)

	flag.Parse()

	if *seed == "" || *roundID == "" {
		fmt.Fprintln(os.Stderr, "usage: verify -seed <seed> -round <round_id> [-client <client_seed>] [-digits 1,2,3,4,5,6]")
		os.Exit(2)
	}

	expectedDigits, err := parseDigits(*expected)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid -digits:", err)
		os.Exit(2)
	}

	match, digits, commitment := fair.VerifyDraw(*seed, *roundID, *clientSeed, expectedDigits, *count)

	fmt.Println("commitment:", commitment)
	fmt.Println("digits:    ", formatDigits(digits))

	if expectedDigits != nil {
		if match {
			fmt.Println("match:      OK")
		} else {
			fmt.Println("match:      MISMATCH")
			os.Exit(1)
		}
	}
}

func parseDigits(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	digits := make([]int, 0, len(parts))

	for _, part := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}

		if d < 0 || d > 9 {
			return nil, fmt.Errorf("digit out of range: %d", d)
		}

		digits = append(digits, d)
	}

	return digits, nil
}

func formatDigits(digits []int) string {
	var b strings.Builder

	for i, d := range digits {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(strconv.Itoa(d))
	}

	return b.String()
}
