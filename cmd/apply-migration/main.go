package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"chrono-core/internal/config"
	"chrono-core/internal/database"

	_ "github.com/lib/pq"
)

// executableStatements 将迁移脚本按分号切分为可执行语句
// 每个语句块内的 -- 注释行先剔除（语句前常带说明注释），仅由注释构成的块整体跳过
func executableStatements(sqlContent string) []string {
	chunks := strings.Split(sqlContent, ";")
	statements := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		kept := make([]string, 0, 8)
		for _, line := range strings.Split(chunk, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			kept = append(kept, line)
		}
		stmt := strings.TrimSpace(strings.Join(kept, "\n"))
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <migration_file.sql>", os.Args[0])
	}

	migrationFile := os.Args[1]
	sqlContent, err := os.ReadFile(migrationFile)
	if err != nil {
		log.Fatalf("Failed to read migration file: %v", err)
	}

	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer database.Close(db)

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	statements := executableStatements(string(sqlContent))
	for i, stmt := range statements {
		fmt.Printf("Executing statement %d/%d...\n", i+1, len(statements))
		if _, err := db.Exec(stmt); err != nil {
			preview := stmt
			if len(preview) > 100 {
				preview = preview[:100]
			}
			log.Fatalf("Failed to execute statement %d: %v\nStatement: %s", i+1, err, preview)
		}
	}

	fmt.Println("Migration completed successfully")
}
