package feishu

import "strings"

// languagePlainText is the service's id for unhighlighted code.
const languagePlainText = 1

// languageIDs is the service's code language enumeration.
var languageIDs = map[string]int{
	"plaintext": 1, "abap": 2, "ada": 3, "apache": 4, "apex": 5,
	"assembly": 6, "bash": 7, "csharp": 8, "c++": 9, "c": 10,
	"cobol": 11, "css": 12, "coffeescript": 13, "d": 14, "dart": 15,
	"delphi": 16, "django": 17, "dockerfile": 18, "erlang": 19, "fortran": 20,
	"foxpro": 21, "go": 22, "groovy": 23, "html": 24, "htmlbars": 25,
	"http": 26, "haskell": 27, "json": 28, "java": 29, "javascript": 30,
	"julia": 31, "kotlin": 32, "latex": 33, "lisp": 34, "logo": 35,
	"lua": 36, "matlab": 37, "makefile": 38, "markdown": 39, "nginx": 40,
	"objective-c": 41, "openedgeabl": 42, "php": 43, "perl": 44, "postscript": 45,
	"powershell": 46, "prolog": 47, "protobuf": 48, "python": 49, "r": 50,
	"rpg": 51, "ruby": 52, "rust": 53, "sas": 54, "scss": 55,
	"sql": 56, "scala": 57, "scheme": 58, "scratch": 59, "shell": 60,
	"swift": 61, "thrift": 62, "typescript": 63, "vbscript": 64, "visual basic": 65,
	"xml": 66, "yaml": 67,
}

var languageAliases = map[string]string{
	"":           "plaintext",
	"text":       "plaintext",
	"txt":        "plaintext",
	"plain text": "plaintext",
	"cpp":        "c++",
	"cs":         "csharp",
	"c#":         "csharp",
	"golang":     "go",
	"js":         "javascript",
	"ts":         "typescript",
	"py":         "python",
	"rb":         "ruby",
	"rs":         "rust",
	"sh":         "shell",
	"zsh":        "shell",
	"yml":        "yaml",
	"md":         "markdown",
	"kt":         "kotlin",
	"docker":     "dockerfile",
	"objc":       "objective-c",
	"ps1":        "powershell",
}

var languageNames = func() map[int]string {
	m := make(map[int]string, len(languageIDs))
	for name, id := range languageIDs {
		m[id] = name
	}
	return m
}()

// LanguageID maps a code language name to the service's id. Unknown names
// map to plain text.
func LanguageID(lang string) int {
	l := strings.ToLower(strings.TrimSpace(lang))
	if alias, ok := languageAliases[l]; ok {
		l = alias
	}
	if id, ok := languageIDs[l]; ok {
		return id
	}
	return languagePlainText
}

// LanguageName maps a service language id back to a name; plain text and
// unknown ids yield "".
func LanguageName(id int) string {
	if id == languagePlainText {
		return ""
	}
	return languageNames[id]
}
