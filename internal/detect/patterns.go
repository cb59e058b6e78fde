package detect

import "regexp"

// pattern is a named signature; matches are reported by name only, never with
// the payload fragment, so audit details stay safe to render.
type pattern struct {
	name     string
	category string
	re       *regexp.Regexp
}

func compilePatterns() []pattern {
	return []pattern{
		// SQL injection
		{name: "sqli_union", category: "sqli",
			re: regexp.MustCompile(`(?i)\bunion\b\s+(all\s+)?select\b`)},
		{name: "sqli_or_true", category: "sqli",
			re: regexp.MustCompile(`(?i)(\bor\b\s+[\d'"]+\s*=\s*[\d'"]+|'\s*or\s*'[^']*'\s*=\s*'[^']*')`)},
		{name: "sqli_stacked", category: "sqli",
			re: regexp.MustCompile(`(?i);\s*(drop|alter|truncate|delete\s+from|update\s+\w+\s+set|insert\s+into|exec|execute)\b`)},
		{name: "sqli_comment", category: "sqli",
			re: regexp.MustCompile(`(?i)(--|#|/\*.*?\*/)\s*(drop|alter|delete|update|insert|select)\b`)},
		{name: "sqli_sleep", category: "sqli",
			re: regexp.MustCompile(`(?i)(sleep\s*\(\s*\d+\s*\)|benchmark\s*\(\s*\d+|waitfor\s+delay\s+')`)},

		// Cross-site scripting
		{name: "xss_script_tag", category: "xss",
			re: regexp.MustCompile(`(?i)<\s*script[^>]*>`)},
		{name: "xss_event_handler", category: "xss",
			re: regexp.MustCompile(`(?i)\bon(error|load|click|mouseover|focus|blur|submit|change|input|keyup|keydown)\s*=`)},
		{name: "xss_javascript_uri", category: "xss",
			re: regexp.MustCompile(`(?i)(javascript|vbscript)\s*:`)},
		{name: "xss_embed_tag", category: "xss",
			re: regexp.MustCompile(`(?i)<\s*(iframe|embed|object|svg)\b`)},

		// Path traversal
		{name: "path_traversal", category: "path",
			re: regexp.MustCompile(`(?i)(\.\.[\\/]|%2e%2e[\\/]|\.\.%2f|%2e%2e%2f)`)},
		{name: "path_sensitive_files", category: "path",
			re: regexp.MustCompile(`(?i)(/etc/(passwd|shadow|hosts)|/proc/self/|\.env\b|\.git/config)`)},

		// Shell command injection
		{name: "cmdi_chain", category: "cmdi",
			re: regexp.MustCompile("(\\||&&|;|`)\\s*(cat|ls|whoami|id|uname|pwd|wget|curl|nc|bash|sh|cmd|powershell|python|perl)\\b")},
		{name: "cmdi_subshell", category: "cmdi",
			re: regexp.MustCompile(`\$\((cat|ls|whoami|id|uname|pwd|wget|curl|nc|bash|sh)\b`)},

		// NoSQL operator injection
		{name: "nosql_operator", category: "nosql",
			re: regexp.MustCompile(`(?i)(\$gt|\$lt|\$gte|\$lte|\$ne|\$nin|\$in|\$regex|\$where|\$exists|\$or|\$and|\$not)\b`)},
		{name: "nosql_json_inject", category: "nosql",
			re: regexp.MustCompile(`(?i)\{\s*['"]\$\w+['"]\s*:`)},
	}
}

// automationAgents are substrings of user agents that identify scripted
// clients and crawlers.
var automationAgents = []string{
	"bot", "crawler", "spider",
	"curl", "wget", "httpie",
	"python-requests", "python-urllib", "go-http-client",
	"java/", "okhttp", "libwww",
}
