package handlers

import (
	"net/http"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/tabledog/tdog-cli-sub000/internal/stripe"
)

// Build metadata, injected from main via SetVersionInfo
var (
	AppName      = "tdog"
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
)

// SetVersionInfo sets the version information for the handler
func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

// VersionResponse is the /version body.
type VersionResponse struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Commit    string            `json:"git_commit"`
	BuildDate string            `json:"build_date"`
	StripeAPI string            `json:"stripe_api_version"`
	Go        string            `json:"go_version"`
	Platform  string            `json:"platform"`
	Libraries map[string]string `json:"libraries"`
}

// VersionHandler reports the build and the Stripe API version requests are
// pinned to by default.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	libs := crucible.GetVersion()

	writeJSON(w, http.StatusOK, VersionResponse{
		Name:      AppName,
		Version:   AppVersion,
		Commit:    AppCommit,
		BuildDate: AppBuildDate,
		StripeAPI: stripe.DefaultVersion,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Libraries: map[string]string{
			"gofulmen": libs.Gofulmen,
			"crucible": libs.Crucible,
		},
	})
}
