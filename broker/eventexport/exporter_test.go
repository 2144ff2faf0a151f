package eventexport

import "testing"

func TestConfig_Enabled(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"no urls", Config{}, false},
		{"one url", Config{URLs: []string{"nats://localhost:4222"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.Enabled(); got != tc.want {
				t.Errorf("Enabled() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestJoinURLs(t *testing.T) {
	got := joinURLs([]string{"nats://a:4222", "nats://b:4222"})
	want := "nats://a:4222,nats://b:4222"
	if got != want {
		t.Errorf("joinURLs() = %q, want %q", got, want)
	}
}
