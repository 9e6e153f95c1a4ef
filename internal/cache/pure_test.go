package cache

import "testing"

func TestHashIP(t *testing.T) {
	t.Parallel()

	seen := map[string]string{}
	for _, ip := range []string{"192.168.1.1", "192.168.1.2", "127.0.0.1", "::1", "2001:db8::8a2e:370:7334", ""} {
		h := hashIP(ip)
		if len(h) != 16 {
			t.Errorf("hashIP(%q) = %q, want 16 hex chars", ip, h)
		}
		if h != hashIP(ip) {
			t.Errorf("hashIP(%q) is not deterministic", ip)
		}
		if prev, dup := seen[h]; dup {
			t.Errorf("hashIP collision between %q and %q", prev, ip)
		}
		seen[h] = ip
		if h == ip {
			t.Errorf("hashIP(%q) returned the raw address", ip)
		}
	}
}

func TestCheckRateLimit_DisabledSkipsRedis(t *testing.T) {
	t.Parallel()

	// A nil client would panic if the script were run.
	c := &Cache{}

	res, err := c.CheckUserRateLimit(t.Context(), 1, 0, 10)
	if err != nil || !res.Allowed || res.Remaining != 10 {
		t.Errorf("user: res = %+v, err = %v", res, err)
	}

	res, err = c.CheckIPRateLimit(t.Context(), "10.0.0.1", 0, 5)
	if err != nil || !res.Allowed || res.Remaining != 5 {
		t.Errorf("ip: res = %+v, err = %v", res, err)
	}
}
