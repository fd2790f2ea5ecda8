package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/exstem-grader/internal/config"
	"github.com/stemsi/exstem-grader/internal/service"
)

// issue-token mints a JWT for a teacher or student id. Accounts live in the
// upstream identity system; this is for local testing and operations.
func main() {
	role := flag.String("role", "student", "token type: student or teacher")
	id := flag.Int("id", 0, "user id (positive)")
	flag.Parse()

	tokenType := service.TokenType(*role)
	if tokenType != service.TokenTypeStudent && tokenType != service.TokenTypeTeacher {
		fmt.Fprintln(os.Stderr, "Error: -role must be student or teacher")
		os.Exit(2)
	}
	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -id must be positive")
		os.Exit(2)
	}

	cfg := config.Load()
	token, err := service.NewAuthService(cfg).GenerateToken(tokenType, *id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
