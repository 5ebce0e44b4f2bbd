// Package layout computes where provisioned toolchains live on disk.
//
// Everything hangs off a base directory, one subtree per Java major
// version:
//
//	<base>/jdk-<major>/<version>/                  JDK home
//	<base>/jdk-<major>/downloads/                  verified archives
//	<base>/jdk-<major>/mvn-custom/bin/mvn-jaenvtix Maven wrapper (.cmd on Windows)
//	<base>/jdk-<major>/mvn-custom/bin/mvnd         Maven daemon (.exe on Windows)
package layout

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/Masterminds/semver/v3"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

const (
	// DirName is the default base directory name under the home directory.
	DirName = ".jaenvtix"

	mavenDir     = "mvn-custom"
	downloadsDir = "downloads"
)

var leadingNumbers = regexp.MustCompile(`^([0-9]+)(?:\.([0-9]+))?`)

// Major returns the Java major version of version. Legacy "1.x" versions
// map to x, so "1.8.0_392" is 8.
func Major(version string) (int, error) {
	if err := errors.ValidateVersion(version); err != nil {
		return 0, err
	}
	var major int
	if v, err := semver.NewVersion(version); err == nil {
		major = int(v.Major())
		if major == 1 && v.Minor() > 0 {
			major = int(v.Minor())
		}
	} else if m := leadingNumbers.FindStringSubmatch(version); m != nil {
		// Vendor strings like "1.8.0_392" are not semver.
		major, _ = strconv.Atoi(m[1])
		if major == 1 && m[2] != "" {
			major, _ = strconv.Atoi(m[2])
		}
	}
	if major == 0 {
		return 0, errors.New(errors.ErrCodeInvalidVersion, "no major version in %q", version)
	}
	return major, nil
}

// DefaultBase returns ~/.jaenvtix.
func DefaultBase() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "locate home directory")
	}
	return filepath.Join(home, DirName), nil
}

// MajorDir returns <base>/jdk-<major>.
func MajorDir(base string, major int) string {
	return filepath.Join(base, "jdk-"+strconv.Itoa(major))
}

// JDKHome returns <base>/jdk-<major>/<version>.
func JDKHome(base, version string) (string, error) {
	major, err := Major(version)
	if err != nil {
		return "", err
	}
	return filepath.Join(MajorDir(base, major), version), nil
}

// DownloadsDir returns the directory verified archives for major are
// downloaded into.
func DownloadsDir(base string, major int) string {
	return filepath.Join(MajorDir(base, major), downloadsDir)
}

// MavenBin returns <base>/jdk-<major>/mvn-custom/bin.
func MavenBin(base string, major int) string {
	return filepath.Join(MajorDir(base, major), mavenDir, "bin")
}

// MavenWrapper returns the path of the Maven wrapper script for goos.
func MavenWrapper(base string, major int, goos string) string {
	name := "mvn-jaenvtix"
	if goos == "windows" {
		name += ".cmd"
	}
	return filepath.Join(MavenBin(base, major), name)
}

// Mvnd returns the path of the Maven daemon binary for goos.
func Mvnd(base string, major int, goos string) string {
	name := "mvnd"
	if goos == "windows" {
		name += ".exe"
	}
	return filepath.Join(MavenBin(base, major), name)
}

// Paths bundles every location for one version.
type Paths struct {
	Version      string
	Major        int
	JDKHome      string
	Downloads    string
	MavenWrapper string
	Mvnd         string
}

// For computes all paths for version under base on goos.
func For(base, version, goos string) (Paths, error) {
	major, err := Major(version)
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		Version:      version,
		Major:        major,
		JDKHome:      filepath.Join(MajorDir(base, major), version),
		Downloads:    DownloadsDir(base, major),
		MavenWrapper: MavenWrapper(base, major, goos),
		Mvnd:         Mvnd(base, major, goos),
	}, nil
}
