package pseudonym

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestDigest_KnownValues(t *testing.T) {
	assert.Equal(t, "2bd806c97f0e00af1a1fc3328fa763a9269723c8db8fac4f93af71db186d6e90", Digest("alice"))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Digest(""))
	assert.Len(t, Digest("any"), 64)
}

func TestProperty_Digest(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("equal ids give equal digests", prop.ForAll(
		func(id string) bool {
			return Digest(id) == Digest(string([]byte(id)))
		},
		gen.AnyString(),
	))

	properties.Property("distinct ids give distinct digests", prop.ForAll(
		func(a, b string) bool {
			if a == b {
				return true
			}
			return Digest(a) != Digest(b)
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("digest never contains the raw id", prop.ForAll(
		func(id string) bool {
			return Digest(id) != id
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
