package notion

import "strings"

// plainLanguage is the service's name for unhighlighted code.
const plainLanguage = "plain text"

var languages = map[string]bool{
	"abap": true, "arduino": true, "bash": true, "basic": true, "c": true,
	"clojure": true, "coffeescript": true, "c++": true, "c#": true, "css": true,
	"dart": true, "diff": true, "docker": true, "elixir": true, "elm": true,
	"erlang": true, "flow": true, "fortran": true, "f#": true, "gherkin": true,
	"glsl": true, "go": true, "graphql": true, "groovy": true, "haskell": true,
	"html": true, "java": true, "javascript": true, "json": true, "julia": true,
	"kotlin": true, "latex": true, "less": true, "lisp": true, "livescript": true,
	"lua": true, "makefile": true, "markdown": true, "markup": true, "matlab": true,
	"mermaid": true, "nix": true, "objective-c": true, "ocaml": true, "pascal": true,
	"perl": true, "php": true, "plain text": true, "powershell": true, "prolog": true,
	"protobuf": true, "python": true, "r": true, "reason": true, "ruby": true,
	"rust": true, "sass": true, "scala": true, "scheme": true, "scss": true,
	"shell": true, "sql": true, "swift": true, "typescript": true, "vb.net": true,
	"verilog": true, "vhdl": true, "visual basic": true, "webassembly": true,
	"xml": true, "yaml": true,
}

var languageAliases = map[string]string{
	"js":         "javascript",
	"jsx":        "javascript",
	"ts":         "typescript",
	"tsx":        "typescript",
	"py":         "python",
	"sh":         "shell",
	"zsh":        "shell",
	"golang":     "go",
	"yml":        "yaml",
	"md":         "markdown",
	"cpp":        "c++",
	"cs":         "c#",
	"csharp":     "c#",
	"rb":         "ruby",
	"rs":         "rust",
	"kt":         "kotlin",
	"dockerfile": "docker",
	"ps1":        "powershell",
	"pwsh":       "powershell",
	"objc":       "objective-c",
	"text":       plainLanguage,
	"txt":        plainLanguage,
	"plaintext":  plainLanguage,
	"plain":      plainLanguage,
}

// ServiceLanguage maps a code language name to the service's language enum.
// Unknown names become plain text.
func ServiceLanguage(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if alias, ok := languageAliases[l]; ok {
		return alias
	}
	if languages[l] {
		return l
	}
	return plainLanguage
}

func canonicalLanguage(lang string) string {
	if lang == plainLanguage {
		return ""
	}
	return lang
}
