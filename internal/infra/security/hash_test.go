package security

import (
	"strings"
	"testing"
)

func testHasher() *PasswordHasher {
	return NewPasswordHasher(Argon2Params{
		Time:      1,
		MemoryKiB: 64,
		Threads:   1,
	})
}

func TestPasswordHasherRoundTrip(t *testing.T) {
	hasher := testHasher()

	encoded, err := hasher.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.Contains(encoded, ":") {
		t.Fatalf("expected salt:hash encoding, got %q", encoded)
	}

	ok, err := hasher.Verify("correct horse", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected the original password to verify")
	}

	ok, err = hasher.Verify("battery staple", encoded)
	if err != nil {
		t.Fatalf("verify wrong password: %v", err)
	}
	if ok {
		t.Fatal("wrong password must not verify")
	}
}

func TestPasswordHasherSaltsEveryHash(t *testing.T) {
	hasher := testHasher()

	first, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestPasswordHasherFillsDefaults(t *testing.T) {
	hasher := NewPasswordHasher(Argon2Params{})

	if hasher.params != defaultArgon2Params {
		t.Fatalf("expected defaults, got %+v", hasher.params)
	}
}

func TestPasswordHasherRejectsMalformedEncoding(t *testing.T) {
	hasher := testHasher()

	if _, err := hasher.Verify("anything", "not-an-encoded-hash"); err == nil {
		t.Fatal("expected malformed encoding to error")
	}

	ok, err := hasher.Verify("", "")
	if err != nil || ok {
		t.Fatalf("empty inputs must fail closed, got ok=%v err=%v", ok, err)
	}
}
