package main

import (
	"strconv"
	"strings"
)

// serverEnv holds the settings the server takes from its environment.
type serverEnv struct {
	// AdminHTTP serves /admin/v1/*; off by default in staging and production.
	AdminHTTP    bool
	PprofHTTP    bool
	IndexBackend string
	ControlToken string
}

func loadEnv(getenv func(string) string) serverEnv {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }
	boolVar := func(key string, def bool) bool {
		b, err := strconv.ParseBool(get(key))
		if err != nil {
			return def
		}
		return b
	}

	adminDefault := true
	switch strings.ToLower(get("AA_DEPLOY_ENV")) {
	case "staging", "production":
		adminDefault = false
	}
	backend := strings.ToLower(get("AA_INDEX_BACKEND"))
	if backend == "" {
		backend = "sqlite"
	}
	return serverEnv{
		AdminHTTP:    boolVar("AA_ENABLE_ADMIN_HTTP", adminDefault),
		PprofHTTP:    boolVar("AA_ENABLE_PPROF_HTTP", false),
		IndexBackend: backend,
		ControlToken: get("AA_CONTROL_TOKEN"),
	}
}
