// Package version exposes build metadata for the jobpanel binary.
//
// The variables are set at build time with ldflags:
//
//	go build -ldflags "\
//	  -X github.com/ncobase/jobpanel/version.Version=1.2.3 \
//	  -X github.com/ncobase/jobpanel/version.Branch=main \
//	  -X github.com/ncobase/jobpanel/version.Revision=abc123 \
//	  -X 'github.com/ncobase/jobpanel/version.BuiltAt=$(date)'" ./cmd/jobpanel
//
// Without ldflags the module version and VCS revision recorded by the Go
// toolchain are used when available.
package version
