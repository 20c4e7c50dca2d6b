// Command familyhub は家族向けタスク管理APIのエントリーポイント。
//
// 使い方:
//
//	familyhub [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/familyhub/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "familyhub: %v\n", err)
		os.Exit(1)
	}
}
