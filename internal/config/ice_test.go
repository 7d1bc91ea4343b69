package config

import (
	"strings"
	"testing"
)

func TestParseICEServersJSON(t *testing.T) {
	raw := `[
		{"urls": "stun:stun.l.google.com:19302"},
		{"urls": ["turn:turn.example.com:3478", "turns:turn.example.com:5349"],
		 "username": "u", "credential": "c"}
	]`
	servers, err := ParseICEServersJSON(raw, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("got %d servers", len(servers))
	}
	if len(servers[0].URLs) != 1 || servers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("server[0] = %+v", servers[0])
	}
	if servers[1].Username != "u" || servers[1].Credential != "c" {
		t.Fatalf("server[1] = %+v", servers[1])
	}
}

func TestParseICEServersJSON_Invalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"not json", "nope", "invalid character"},
		{"no urls", `[{"username":"u"}]`, "missing urls"},
		{"bad scheme", `[{"urls":"http://example.com"}]`, "unsupported url scheme"},
		{"turn without creds", `[{"urls":"turn:t.example.com"}]`, "require username"},
		{"turn without credential", `[{"urls":"turn:t.example.com","username":"u"}]`, "require credential"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseICEServersJSON(tc.raw, false)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestParseICEServersJSON_TURNRESTRelaxesCredentials(t *testing.T) {
	servers, err := ParseICEServersJSON(`[{"urls":"turn:t.example.com"}]`, true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(servers) != 1 {
		t.Fatalf("got %d servers", len(servers))
	}
}

func TestLoadICEServers_ConvenienceEnv(t *testing.T) {
	env := map[string]string{
		envVarSTUNURLs:       "stun:a.example.com, stun:b.example.com",
		envVarTURNURLs:       "turn:t.example.com",
		envVarTURNUsername:   "u",
		envVarTURNCredential: "c",
	}
	servers, err := loadICEServers(lookupFrom(env), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("got %d servers", len(servers))
	}
	if len(servers[0].URLs) != 2 {
		t.Fatalf("stun urls = %v", servers[0].URLs)
	}
}

func TestLoadICEServers_JSONWinsOverConvenience(t *testing.T) {
	env := map[string]string{
		envVarICEServersJSON: `[{"urls":"stun:json.example.com"}]`,
		envVarSTUNURLs:       "stun:convenience.example.com",
	}
	servers, err := loadICEServers(lookupFrom(env), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(servers) != 1 || servers[0].URLs[0] != "stun:json.example.com" {
		t.Fatalf("servers = %+v", servers)
	}
}
