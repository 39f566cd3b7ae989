package fair

import "testing"

func TestExtractDigitsDeterministic(t *testing.T) {
	cases := []struct {
		name       string
		seed       string
		roundID    string
		clientSeed string
	}{
		{
			name:    "NoClientSeed",
			seed:    "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			roundID: "test_round_1",
		},
		{
			name:       "WithClientSeed",
			seed:       "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			roundID:    "test_round_2",
			clientSeed: "user_seed_123",
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			first := ExtractDigits(tc.seed, tc.roundID, tc.clientSeed, DefaultDigitCount)
			second := ExtractDigits(tc.seed, tc.roundID, tc.clientSeed, DefaultDigitCount)

			if len(first) != DefaultDigitCount {
				t.Fatalf("unexpected length, want: %d, got: %d", DefaultDigitCount, len(first))
			}

			for i := range first {
				if first[i] != second[i] {
					t.Fatalf("digits differ at %d: %v vs %v", i, first, second)
				}

				if first[i] < 0 || first[i] > 9 {
					t.Fatalf("digit out of range: %d", first[i])
				}
			}
		})
	}
}

func TestExtractDigitsClientSeedChangesDraw(t *testing.T) {
	seed := "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"

	plain := ExtractDigits(seed, "round_x", "", DefaultDigitCount)
	seeded := ExtractDigits(seed, "round_x", "client", DefaultDigitCount)

	same := true
	for i := range plain {
		if plain[i] != seeded[i] {
			same = false
		}
	}

	if same {
		t.Errorf("client seed did not change the draw: %v", plain)
	}
}

func TestSampleDigitsRejectsBiasedBytes(t *testing.T) {
	block := []byte{1, 251, 2, 252, 3, 253, 4, 254, 5, 255, 6, 0}

	digits := SampleDigits(block, 6)

	want := []int{1, 2, 3, 4, 5, 6}
	if len(digits) != len(want) {
		t.Fatalf("unexpected length, want: %d, got: %d", len(want), len(digits))
	}

	for i := range want {
		if digits[i] != want[i] {
			t.Errorf("unexpected digits, want: %v, got: %v", want, digits)

			break
		}
	}
}

func TestCommitmentStability(t *testing.T) {
	seed := "dddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd"

	first := Commitment(seed)
	second := Commitment(seed)

	if first != second {
		t.Errorf("commitment is not stable: %s vs %s", first, second)
	}

	if len(first) != 64 {
		t.Errorf("unexpected commitment length: %d", len(first))
	}

	altered := Commitment("e" + seed[1:])
	if altered == first {
		t.Errorf("single byte change did not alter commitment")
	}
}

func TestVerifyDrawSelfConsistency(t *testing.T) {
	seed := "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	roundID := "round_verify"

	digits := ExtractDigits(seed, roundID, "", DefaultDigitCount)

	match, computed, commitment := VerifyDraw(seed, roundID, "", digits, DefaultDigitCount)
	if !match {
		t.Fatalf("verification of own digits did not match: %v vs %v", digits, computed)
	}

	if commitment != Commitment(seed) {
		t.Errorf("unexpected commitment: %s", commitment)
	}

	match, _, _ = VerifyDraw(seed, roundID, "", []int{0, 0, 0, 0, 0, 0, 1}, DefaultDigitCount)
	if match {
		t.Errorf("verification matched wrong digits")
	}
}
