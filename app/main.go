package main

import (
	"fmt"
	"os"
	"strings"
)

// runProgram is the testable entry point: main() just forwards os.Args and
// turns a non-nil error into a non-zero exit code. Separated out so tests
// can drive the CLI without touching process state. Errors are rendered to
// stderr here, at the boundary, and nowhere deeper; a failing command
// prints no partial result lines before its error.
func runProgram(args []string) error {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: <program> <database-file> <command>")
		return fmt.Errorf("usage: <program> <database-file> <command>")
	}

	dbPath := args[1]
	command := strings.Join(args[2:], " ")

	if command != ".dbinfo" && command != ".tables" && !strings.HasPrefix(strings.ToLower(command), "select") {
		err := NewDatabaseError("dispatch", ErrUnknownCommand, map[string]any{"command": command})
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		return err
	}

	file, err := os.Open(dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	db, err := Open(file)
	if err != nil {
		file.Close()
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer db.Close()

	switch command {
	case ".dbinfo":
		err = runDBInfo(db)
	case ".tables":
		err = runTables(db)
	default:
		err = runSQL(db, command)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return err
}

func runDBInfo(db *Db) error {
	count, err := db.TableCount()
	if err != nil {
		return err
	}
	fmt.Printf("database page size: %v\n", db.PageSize())
	fmt.Printf("number of tables: %v\n", count)
	return nil
}

func runTables(db *Db) error {
	names, err := db.TableNames()
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(names, " "))
	return nil
}

func runSQL(db *Db, sqlText string) error {
	q, err := parseSelect(sqlText)
	if err != nil {
		return err
	}
	result, err := db.Select(q)
	if err != nil {
		return err
	}
	for _, line := range FormatRows(result) {
		fmt.Println(line)
	}
	return nil
}

func main() {
	if err := runProgram(os.Args); err != nil {
		os.Exit(1)
	}
}
