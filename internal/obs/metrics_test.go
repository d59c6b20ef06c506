package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"": "/",
		"/metrics":          "/metrics",
		"/v1/auth/signin":   "/v1/auth/signin",
		"/v1/tasks":         "/v1/tasks",
		"/v1/tasks/abc":     "/v1/tasks/:id",
		"/v1/tasks/abc/sub": "/v1/tasks/:id/sub",
		"/v1/teams/9f2":     "/v1/teams/:id",
		"/v1/orgs/9f2":      "/v1/orgs/:id",
		"/v1/admin/roles/x": "/v1/admin/roles/:id",
		"/v1/tasks?limit=5": "/v1/tasks",
		"/v1/tasks/abc?x=1": "/v1/tasks/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
