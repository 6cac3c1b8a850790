package tests

import (
	"fmt"
	"os"
	"testing"

	"github.com/fleetops/suivi/core"
	appfs "github.com/fleetops/suivi/fs"
)

func TestMain(m *testing.M) {
	if err := core.ParseEmailTemplates(appfs.FS, "templates/email", true); err != nil {
		fmt.Printf("parsing email templates: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}
