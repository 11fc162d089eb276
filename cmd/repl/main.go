// Command repl is a line-oriented interactive shell over the engine: it
// reads semicolon-terminated SQL statements from stdin and prints tabular
// results, in the style of the teacher's own cmd/repl.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/relicdb/relic/internal/catalog"
	"github.com/relicdb/relic/internal/common"
	"github.com/relicdb/relic/internal/config"
	"github.com/relicdb/relic/internal/engine"
)

var (
	flagConfig = flag.String("config", "", "path to a YAML config file (optional, uses built-in defaults if empty)")
	flagEcho   = flag.Bool("echo", false, "echo SQL statements before execution")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *flagConfig != "" {
		var err error
		cfg, err = config.Load(*flagConfig)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config error:", err)
			os.Exit(1)
		}
	}

	db, err := catalog.Open(cfg.DataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open error:", err)
		os.Exit(1)
	}
	defer db.Close()

	runREPL(engine.NewEngine(db), *flagEcho)
}

func runREPL(e *engine.Engine, echo bool) {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 1024), 4*1024*1024)

	var buf strings.Builder
	interactive := false
	if fi, err := os.Stdin.Stat(); err == nil {
		interactive = (fi.Mode() & os.ModeCharDevice) != 0
	}
	if interactive {
		fmt.Println("relic REPL. End a statement with ';'. Ctrl-D to quit.")
	}

	for {
		if interactive {
			if buf.Len() == 0 {
				fmt.Print("sql> ")
			} else {
				fmt.Print(" ... ")
			}
		}

		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				fmt.Fprintln(os.Stderr, "read error:", err)
			}
			return
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		buf.WriteString(line)
		buf.WriteString(" ")
		if !strings.HasSuffix(line, ";") {
			continue
		}

		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		if echo {
			fmt.Println(stmt)
		}
		runStatement(e, stmt)
	}
}

func runStatement(e *engine.Engine, sql string) {
	if isQuery(sql) {
		res, err := e.Query(sql)
		if err != nil {
			fmt.Println("ERR:", err)
			return
		}
		printTable(res.Columns, res.Rows)
		return
	}
	res, err := e.Exec(sql)
	if err != nil {
		fmt.Println("ERR:", err)
		return
	}
	fmt.Printf("OK (%d row(s) affected)\n", res.RowsAffected)
}

func isQuery(sql string) bool {
	trimmed := strings.TrimSpace(sql)
	return len(trimmed) >= 6 && strings.EqualFold(trimmed[:6], "SELECT")
}

func printTable(cols []string, rows []common.Row) {
	width := make([]int, len(cols))
	for i, c := range cols {
		width[i] = len(c)
	}
	cellText := make([][]string, len(rows))
	for r, row := range rows {
		cellText[r] = make([]string, len(cols))
		for i, c := range cols {
			v, _ := row.Get(c)
			cellText[r][i] = v.String()
			if w := len(cellText[r][i]); w > width[i] {
				width[i] = w
			}
		}
	}

	printRow(cols, width)
	sep := make([]string, len(cols))
	for i := range cols {
		sep[i] = strings.Repeat("-", width[i])
	}
	printRow(sep, width)
	for _, r := range cellText {
		printRow(r, width)
	}
}

func printRow(cells []string, width []int) {
	for i, c := range cells {
		fmt.Print(padRight(c, width[i]))
		if i < len(cells)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
