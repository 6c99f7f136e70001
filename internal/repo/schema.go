package repo

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// repoFile is the schema of repo.hcl.
type repoFile struct {
	Repo *repoBlock `hcl:"repo,block"`
}

type repoBlock struct {
	Namespace string `hcl:"namespace"`
	API       string `hcl:"api,optional"`
}

// packageFile is the schema of a file under packages/.
type packageFile struct {
	Packages []*packageBlock `hcl:"package,block"`
}

type packageBlock struct {
	Name        string           `hcl:"name,label"`
	Description string           `hcl:"description,optional"`
	Targets     []string         `hcl:"targets,optional"`
	Versions    []*versionBlock  `hcl:"version,block"`
	Variants    []*variantBlock  `hcl:"variant,block"`
	Depends     []*dependsBlock  `hcl:"depends_on,block"`
	Conflicts   []*conflictBlock `hcl:"conflicts,block"`
	Provides    []*providesBlock `hcl:"provides,block"`
}

type versionBlock struct {
	Version    string `hcl:"version,label"`
	Preferred  bool   `hcl:"preferred,optional"`
	Deprecated bool   `hcl:"deprecated,optional"`
}

type variantBlock struct {
	Name        string    `hcl:"name,label"`
	Default     cty.Value `hcl:"default,optional"`
	Values      []string  `hcl:"values,optional"`
	Multi       bool      `hcl:"multi,optional"`
	Description string    `hcl:"description,optional"`
	When        string    `hcl:"when,optional"`
	WhenAny     []string  `hcl:"when_any,optional"`
}

type dependsBlock struct {
	Spec    string   `hcl:"spec,label"`
	Type    []string `hcl:"type,optional"`
	When    string   `hcl:"when,optional"`
	WhenAny []string `hcl:"when_any,optional"`
}

type conflictBlock struct {
	Spec    string   `hcl:"spec,label"`
	Msg     string   `hcl:"msg,optional"`
	When    string   `hcl:"when,optional"`
	WhenAny []string `hcl:"when_any,optional"`
}

type providesBlock struct {
	Spec    string   `hcl:"spec,label"`
	When    string   `hcl:"when,optional"`
	WhenAny []string `hcl:"when_any,optional"`
}

// indexFile decodes only what the provider index needs.
type indexFile struct {
	Packages []*indexPackage `hcl:"package,block"`
}

type indexPackage struct {
	Name     string           `hcl:"name,label"`
	Provides []*providesBlock `hcl:"provides,block"`
	Remain   hcl.Body         `hcl:",remain"`
}
