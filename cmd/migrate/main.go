// migrate aplica las migraciones SQL del esquema contra Postgres.
// Uso: migrate [-config config.yaml] [up|down] [steps]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/gatekeeper/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path al YAML de configuración")
		dir        = flag.String("dir", "migrations/postgres", "Directorio de migraciones (*.up.sql / *.down.sql)")
	)
	flag.Parse()

	action := "up"
	steps := 0
	args := flag.Args()
	if len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			steps = n
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	switch action {
	case "up":
		files, err := listSQL(*dir, ".up.sql")
		if err != nil {
			log.Fatalf("list up: %v", err)
		}
		if len(files) == 0 {
			log.Println("no *.up.sql migrations found, nothing to do")
			return
		}
		sort.Strings(files)
		if steps > 0 && steps < len(files) {
			files = files[:steps]
		}
		log.Printf("applying %d up migration(s)", len(files))
		for _, f := range files {
			if err := execSQLFile(ctx, pool, f); err != nil {
				log.Fatalf("exec %s: %v", f, err)
			}
		}
		log.Println("up migrations completed")

	case "down":
		files, err := listSQL(*dir, ".down.sql")
		if err != nil {
			log.Fatalf("list down: %v", err)
		}
		if len(files) == 0 {
			log.Println("no *.down.sql migrations found, nothing to do")
			return
		}
		sort.Strings(files)
		reverseInPlace(files) // los downs corren en orden inverso
		if steps > 0 && steps < len(files) {
			files = files[:steps]
		}
		log.Printf("applying %d down migration(s)", len(files))
		for _, f := range files {
			if err := execSQLFile(ctx, pool, f); err != nil {
				log.Fatalf("exec %s: %v", f, err)
			}
		}
		log.Println("down migrations completed")

	default:
		log.Fatalf("unknown action %q, use: up | down [steps]", action)
	}
}

func listSQL(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

func reverseInPlace(ss []string) {
	for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
		ss[i], ss[j] = ss[j], ss[i]
	}
}

func execSQLFile(ctx context.Context, pool *pgxpool.Pool, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	start := time.Now()
	if _, err := pool.Exec(ctx, string(b)); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	log.Printf("OK %s (%s)", filepath.Base(path), time.Since(start).Truncate(time.Millisecond))
	return nil
}
