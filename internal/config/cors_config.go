package config

import "strings"

type Cors struct {
	env EnvVars
}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins lists the admin UI origins allowed to call the dev server (comma separated)
func (c Cors) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	for _, o := range strings.Split(c.env.get("LUNAR_ALLOWED_ORIGINS", "http://localhost:5173"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = nullValue{}
		}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, PUT, PATCH, DELETE"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization, X-Request-ID"
}
