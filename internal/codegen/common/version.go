package common

import (
	"fmt"
	"strings"

	"github.com/brickgen/brickgen/model"
)

// Version of the generator itself, stamped by the release build with
// -ldflags "-X github.com/brickgen/brickgen/internal/codegen/common.Version=x.y.z".
var Version = ""

const devVersion = "0.0.1-dev"

// GetVersion returns Version without a leading "v". Unstamped builds
// report devVersion. A suffix after the first "-" is kept as is.
func GetVersion() (string, error) {
	if Version == "" {
		return devVersion, nil
	}
	v := strings.TrimPrefix(Version, "v")
	base, _, _ := strings.Cut(v, "-")
	if _, err := model.ParseVersion(base); err != nil {
		return "", fmt.Errorf("generator version %q: %w", Version, err)
	}
	return v, nil
}
