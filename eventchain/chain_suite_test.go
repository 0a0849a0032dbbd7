package eventchain_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEventChain(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "eventchain suite")
}
