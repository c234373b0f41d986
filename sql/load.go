package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed papers.sql
var papersSQL string

// PapersFunctions are the functions papers.sql has to create
var PapersFunctions = []string{
	"init_papers",
	"insert_paper",
	"select_paper",
	"select_all_papers",
	"search_papers",
	"select_papers_by_similarity",
	"update_paper_embedding",
	"delete_paper",
}

// Init creates the vector and pgcrypto extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadPapersSql loads the paper store functions.
// Unless force is set nothing happens when all functions already exist.
func LoadPapersSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, PapersFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing papers functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(papersSQL)
	if err != nil {
		return fmt.Errorf("error executing papers SQL: %w", err)
	}

	exist, err := checkFunctions(db, PapersFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL papers functions loaded successfully")
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	for _, f := range sqlFunctions {
		var exists bool
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !exists {
			log.Printf("Function %s does not exist", f)
			return false, nil
		}
	}
	return true, nil
}
