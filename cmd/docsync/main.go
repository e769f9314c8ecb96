// docsync CLI entry point
//
// docsync keeps one logical document in step across a Notion page, a Feishu
// cloud document and a local Markdown file.
package main

import "github.com/jbctechsolutions/docsync/internal/presentation/cli/commands"

func main() {
	commands.Execute()
}
