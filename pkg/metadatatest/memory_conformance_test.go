package metadatatest_test

import (
	"testing"

	"github.com/niooii/ocloud/pkg/metadata"
	"github.com/niooii/ocloud/pkg/metadatatest"
)

func TestConformance(t *testing.T) {
	metadatatest.RunConformanceSuite(t, func(t *testing.T) metadata.Store {
		return metadatatest.New()
	})
}
