package sm_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestSM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "State Machine Runtime Suite")
}
