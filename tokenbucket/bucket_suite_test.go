package tokenbucket_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTokenBucket(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "tokenbucket suite")
}
