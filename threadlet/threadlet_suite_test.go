package threadlet_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestThreadlet(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "threadlet suite")
}
