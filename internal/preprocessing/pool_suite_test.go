package preprocessing_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestPreprocessing(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Preprocessing Pool Suite")
}
