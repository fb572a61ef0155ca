package utils

import (
	"os"
	"strings"
)

// publicPrefix is the frontend-exposure prefix some deployments use for
// variables that are shared with the dashboard build.
const publicPrefix = "NEXT_PUBLIC_"

// Env resolves an environment variable by name, trying both the plain name
// and the public-prefixed variant. Deployments migrated from the dashboard
// stack sometimes only define the prefixed form.
func Env(name string) string {
	name = strings.TrimPrefix(name, publicPrefix)
	if v := os.Getenv(name); v != "" {
		return v
	}
	return os.Getenv(publicPrefix + name)
}

// EnvOr resolves an environment variable with Env and falls back to def
// when neither form is set.
func EnvOr(name, def string) string {
	if v := Env(name); v != "" {
		return v
	}
	return def
}
