package models

import "fmt"

// Language identifies one of the editor's supported languages.
// The set is closed: every switch over Language is expected to be exhaustive.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangGo         Language = "go"
	LangCPP        Language = "cpp"
)

// Languages lists every supported language in display order.
var Languages = []Language{LangJavaScript, LangTypeScript, LangPython, LangGo, LangCPP}

// ParseLanguage validates a wire-level language string.
func ParseLanguage(s string) (Language, error) {
	for _, l := range Languages {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// Valid reports whether l is a member of the closed language set.
func (l Language) Valid() bool {
	_, err := ParseLanguage(string(l))
	return err == nil
}

var starterSnippets = map[Language]string{
	LangJavaScript: "// Write your JavaScript here\nconsole.log(\"Hello, world!\");\n",
	LangTypeScript: "// Write your TypeScript here\nconst greeting: string = \"Hello, world!\";\nconsole.log(greeting);\n",
	LangPython:     "# Write your Python here\nprint(\"Hello, world!\")\n",
	LangGo:         "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"Hello, world!\")\n}\n",
	LangCPP:        "#include <iostream>\n\nint main() {\n    std::cout << \"Hello, world!\" << std::endl;\n    return 0;\n}\n",
}

// StarterSnippet returns the canned document text a session starts with
// for the given language. Switching language always resets the document
// to this text so every peer renders a consistent {code, language} pair.
func (l Language) StarterSnippet() string {
	return starterSnippets[l]
}
