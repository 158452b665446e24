package otp

import (
	"strconv"
	"testing"
)

func TestGenerateProducesSixDigitCodes(t *testing.T) {
	src := NewSource()
	for i := 0; i < 50; i++ {
		code, err := src.Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q has length %d, want 6", code, len(code))
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("code %q is not numeric: %v", code, err)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("code %d outside [100000, 999999]", n)
		}
	}
}

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "123456" {
		t.Fatal("hash must not equal the plaintext code")
	}
	if !Verify(hash, "123456") {
		t.Fatal("correct code failed verification")
	}
	if Verify(hash, "654321") {
		t.Fatal("wrong code passed verification")
	}
	if Verify(hash, "") {
		t.Fatal("empty code passed verification")
	}
}

func TestHashesAreSalted(t *testing.T) {
	a, err := Hash("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := Hash("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same code are identical; bcrypt salt missing")
	}
}
