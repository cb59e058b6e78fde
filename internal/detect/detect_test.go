package detect

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

func TestDetector_Scan(t *testing.T) {
	d := New(NewMemoryReputationStore())

	tests := []struct {
		name    string
		payload string
		want    []string
	}{
		{
			name:    "benign payload",
			payload: `{"essay": "I would like to study computer engineering."}`,
			want:    nil,
		},
		{
			name:    "empty payload",
			payload: "",
			want:    nil,
		},
		{
			name:    "union select",
			payload: "id=1 UNION SELECT password FROM users",
			want:    []string{"sqli_union"},
		},
		{
			name:    "or true tautology",
			payload: "name=' OR '1'='1",
			want:    []string{"sqli_or_true"},
		},
		{
			name:    "stacked drop",
			payload: "x'; DROP TABLE applications",
			want:    []string{"sqli_stacked"},
		},
		{
			name:    "time based",
			payload: "id=1 AND sleep(5)",
			want:    []string{"sqli_sleep"},
		},
		{
			name:    "script tag",
			payload: `<script src="//evil.example/x.js">`,
			want:    []string{"xss_script_tag"},
		},
		{
			name:    "event handler",
			payload: `<img src=x onerror=alert(1)>`,
			want:    []string{"xss_event_handler"},
		},
		{
			name:    "javascript uri",
			payload: `href="javascript:void(fetch('/admin'))"`,
			want:    []string{"xss_javascript_uri"},
		},
		{
			name:    "dotdot traversal",
			payload: "file=../../../etc/passwd",
			want:    []string{"path_traversal", "path_sensitive_files"},
		},
		{
			name:    "encoded traversal",
			payload: "file=%2e%2e%2fsecret",
			want:    []string{"path_traversal"},
		},
		{
			name:    "command chain",
			payload: "name=x; cat /etc/shadow",
			want:    []string{"path_sensitive_files", "cmdi_chain"},
		},
		{
			name:    "subshell",
			payload: "arg=$(whoami)",
			want:    []string{"cmdi_subshell"},
		},
		{
			name:    "nosql operator",
			payload: `{"password": {"$ne": ""}}`,
			want:    []string{"nosql_operator", "nosql_json_inject"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Scan(tt.payload))
		})
	}
}

func TestInspectUserAgent(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"normal browser", goodUA, ""},
		{"empty", "", "missing user agent"},
		{"whitespace only", "   ", "missing user agent"},
		{"too short", "abc", "abnormally short user agent"},
		{"curl", "curl/8.4.0 (x86_64)", "automation user agent"},
		{"python requests", "python-requests/2.31.0", "automation user agent"},
		{"crawler", "ExampleCrawler/1.0 (+https://example.com)", "automation user agent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inspectUserAgent(tt.ua))
		})
	}
}

func TestDetector_Assess(t *testing.T) {
	ctx := context.Background()

	t.Run("clean request allowed", func(t *testing.T) {
		d := New(NewMemoryReputationStore())
		a, err := d.Assess(ctx, "10.0.0.1", goodUA, `{"essay": "hello"}`)
		require.NoError(t, err)
		assert.Equal(t, VerdictAllow, a.Verdict)
		assert.False(t, a.RequiresCaptcha)
		assert.Empty(t, a.Issues)
	})

	t.Run("signature match challenges", func(t *testing.T) {
		d := New(NewMemoryReputationStore())
		a, err := d.Assess(ctx, "10.0.0.1", goodUA, "id=1 UNION SELECT *")
		require.NoError(t, err)
		assert.Equal(t, VerdictChallenge, a.Verdict)
		assert.True(t, a.RequiresCaptcha)
		assert.Equal(t, []string{"sqli_union"}, a.Patterns)
	})

	t.Run("single soft signal alone is allowed", func(t *testing.T) {
		d := New(NewMemoryReputationStore())
		a, err := d.Assess(ctx, "10.0.0.1", "curl/8.4.0 (x86_64)", `{"ok": true}`)
		require.NoError(t, err)
		assert.Equal(t, VerdictAllow, a.Verdict)
		assert.Len(t, a.Issues, 1)
	})

	t.Run("failures past challenge threshold require captcha", func(t *testing.T) {
		d := New(NewMemoryReputationStore())
		for i := 0; i < challengeFailures+1; i++ {
			_, err := d.RecordAuthFailure(ctx, "10.0.0.9")
			require.NoError(t, err)
		}
		a, err := d.Assess(ctx, "10.0.0.9", goodUA, `{"ok": true}`)
		require.NoError(t, err)
		assert.Equal(t, VerdictChallenge, a.Verdict)
		assert.True(t, a.RequiresCaptcha)
	})

	t.Run("flagged source is blocked", func(t *testing.T) {
		d := New(NewMemoryReputationStore())
		for i := 0; i < suspicionThreshold; i++ {
			_, err := d.RecordAuthFailure(ctx, "10.0.0.9")
			require.NoError(t, err)
		}
		a, err := d.Assess(ctx, "10.0.0.9", goodUA, `{"ok": true}`)
		require.NoError(t, err)
		assert.Equal(t, VerdictBlock, a.Verdict)
		assert.Contains(t, a.Issues, "source address is flagged for repeated failures")
	})

	t.Run("other sources unaffected by flagged ip", func(t *testing.T) {
		d := New(NewMemoryReputationStore())
		for i := 0; i < suspicionThreshold; i++ {
			_, err := d.RecordAuthFailure(ctx, "10.0.0.9")
			require.NoError(t, err)
		}
		a, err := d.Assess(ctx, "10.0.0.10", goodUA, `{"ok": true}`)
		require.NoError(t, err)
		assert.Equal(t, VerdictAllow, a.Verdict)
	})
}

func TestMemoryReputationStore(t *testing.T) {
	ctx := context.Background()

	t.Run("counts accumulate per ip", func(t *testing.T) {
		s := NewMemoryReputationStore()
		for i := 1; i <= 3; i++ {
			count, err := s.RecordFailure(ctx, "10.0.0.1")
			require.NoError(t, err)
			assert.Equal(t, i, count)
		}
		count, err := s.Failures(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		count, err = s.Failures(ctx, "10.0.0.2")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("threshold flags the ip", func(t *testing.T) {
		s := NewMemoryReputationStore()
		for i := 0; i < suspicionThreshold-1; i++ {
			_, err := s.RecordFailure(ctx, "10.0.0.1")
			require.NoError(t, err)
		}
		suspicious, err := s.IsSuspicious(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, suspicious)

		_, err = s.RecordFailure(ctx, "10.0.0.1")
		require.NoError(t, err)
		suspicious, err = s.IsSuspicious(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, suspicious)
	})
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestRedisReputationStore(t *testing.T) {
	ctx := context.Background()

	t.Run("counts and flags", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()
		s := NewRedisReputationStoreWithClient(client)

		for i := 1; i <= suspicionThreshold-1; i++ {
			count, err := s.RecordFailure(ctx, "10.0.0.1")
			require.NoError(t, err)
			assert.Equal(t, i, count)
		}
		suspicious, err := s.IsSuspicious(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, suspicious)

		_, err = s.RecordFailure(ctx, "10.0.0.1")
		require.NoError(t, err)
		suspicious, err = s.IsSuspicious(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, suspicious)
	})

	t.Run("entries expire", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()
		s := NewRedisReputationStoreWithClient(client)

		for i := 0; i < suspicionThreshold; i++ {
			_, err := s.RecordFailure(ctx, "10.0.0.1")
			require.NoError(t, err)
		}

		mr.FastForward(reputationTTL + time.Minute)

		count, err := s.Failures(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		suspicious, err := s.IsSuspicious(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, suspicious)
	})

	t.Run("unknown ip reads zero", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()
		s := NewRedisReputationStoreWithClient(client)

		count, err := s.Failures(ctx, "10.9.9.9")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}
