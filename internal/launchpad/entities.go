// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package launchpad

import (
	"strings"
	"time"
)

// Entry holds the bookkeeping fields every Launchpad API entry
// carries. The self link doubles as the entry's identity, and the
// etag guards PATCH requests against concurrent modification.
type Entry struct {
	SelfLink string `json:"self_link"`
	WebLink  string `json:"web_link,omitempty"`
	HTTPETag string `json:"http_etag,omitempty"`
}

// Person is a Launchpad person or team.
type Person struct {
	Entry
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	IsTeam      bool   `json:"is_team"`
}

// Project is a Launchpad project (product).
type Project struct {
	Entry
	Name                 string `json:"name"`
	DisplayName          string `json:"display_name"`
	OwnerLink            string `json:"owner_link"`
	VCS                  string `json:"vcs"`
	SeriesCollectionLink string `json:"series_collection_link"`
}

// ProjectSeries is a named release series of a Launchpad project.
type ProjectSeries struct {
	Entry
	Name    string `json:"name"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Status  string `json:"status"`
	Active  bool   `json:"active"`
}

// GitRepository is a git repository hosted on or mirrored into
// Launchpad.
type GitRepository struct {
	Entry
	Name               string `json:"name"`
	OwnerLink          string `json:"owner_link"`
	TargetLink         string `json:"target_link"`
	GitHTTPSURL        string `json:"git_https_url"`
	TargetDefault      bool   `json:"target_default"`
	CodeImportLink     string `json:"code_import_link,omitempty"`
	RefsCollectionLink string `json:"refs_collection_link"`
}

// GitRef is a reference (branch) in a Launchpad git repository.
type GitRef struct {
	Entry
	Path       string `json:"path"`
	CommitSHA1 string `json:"commit_sha1"`
}

// BranchName returns the branch name with the refs/heads/ prefix
// stripped.
func (r GitRef) BranchName() string {
	return strings.TrimPrefix(r.Path, "refs/heads/")
}

// CodeImport mirrors an external repository into Launchpad.
type CodeImport struct {
	Entry
	URL               string `json:"url"`
	GitRepositoryLink string `json:"git_repository_link"`
	ReviewStatus      string `json:"review_status"`
}

// CharmRecipe is a Launchpad charm build recipe: it builds a charm
// from a git branch and optionally uploads the result to the store
// channels it targets.
type CharmRecipe struct {
	Entry
	Name                 string            `json:"name"`
	OwnerLink            string            `json:"owner_link"`
	ProjectLink          string            `json:"project_link"`
	GitRefLink           string            `json:"git_ref_link"`
	AutoBuild            bool              `json:"auto_build"`
	AutoBuildChannels    map[string]string `json:"auto_build_channels,omitempty"`
	BuildPath            string            `json:"build_path,omitempty"`
	StoreName            string            `json:"store_name"`
	StoreUpload          bool              `json:"store_upload"`
	StoreChannels        []string          `json:"store_channels,omitempty"`
	CanUploadToStore     bool              `json:"can_upload_to_store"`
	IsStale              bool              `json:"is_stale"`
	BuildsCollectionLink string            `json:"builds_collection_link"`
}

// Build states reported by Launchpad for a recipe build.
const (
	BuildSuccessful   = "Successfully built"
	BuildCurrently    = "Currently building"
	BuildUploading    = "Uploading build"
	BuildNeedsBuild   = "Needs building"
	BuildFailed       = "Failed to build"
	BuildFailedUpload = "Failed to upload"
)

// Build is a single build of a charm recipe on one architecture.
type Build struct {
	Entry
	BuildState              string     `json:"buildstate"`
	DateBuilt               *time.Time `json:"datebuilt"`
	BuildLogURL             string     `json:"build_log_url"`
	RevisionID              string     `json:"revision_id"`
	StoreUploadStatus       string     `json:"store_upload_status"`
	StoreUploadRevision     *int       `json:"store_upload_revision"`
	StoreUploadErrorMessage string     `json:"store_upload_error_message"`
	DistroArchSeriesLink    string     `json:"distro_arch_series_link"`
	RecipeLink              string     `json:"recipe_link"`
}

// DistroArchSeries derives the distro series and architecture tag
// from the build's distro_arch_series link, which has the shape
// .../<distribution>/<series>/<arch>.
func (b Build) DistroArchSeries() (series, arch string) {
	parts := strings.Split(strings.Trim(b.DistroArchSeriesLink, "/"), "/")
	if len(parts) < 2 {
		return "", ""
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

// BuildRequest is the asynchronous request entry returned by the
// requestBuilds operation.
type BuildRequest struct {
	Entry
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// collection is one page of a Launchpad collection response.
type collection[T any] struct {
	TotalSize          int    `json:"total_size"`
	Start              int    `json:"start"`
	NextCollectionLink string `json:"next_collection_link,omitempty"`
	Entries            []T    `json:"entries"`
}

// serviceRoot is the API root document, which carries the links to
// the top level collections.
type serviceRoot struct {
	CharmRecipesCollectionLink    string `json:"charm_recipes_collection_link"`
	GitRepositoriesCollectionLink string `json:"git_repositories_collection_link"`
	PeopleCollectionLink          string `json:"people_collection_link"`
	ProjectsCollectionLink        string `json:"projects_collection_link"`
}
