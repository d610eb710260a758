// Package main (cmd/featgen) is the command-line front end of featgen.
//
// featgen reads a directory of feature models, each declaring one or more
// tasks, together with optional questionnaires under questions/. It
// generates the valid configurations of a task either from questionnaire
// answers (generate) or from property constraints (advanced), prints them
// or writes them as Go code, and can store the result as a run in SQLite,
// PostgreSQL or MySQL.
//
// The serve command exposes the same flows over HTTP and, with --watch,
// reloads the models when their files change.
//
// Example usage:
//
//	featgen tasks --models ./models
//	featgen generate --models ./models --task c0_PasswordBasedEncryption \
//	    --answer 0=SHA-256 --answer 1="128 bit"
//	featgen advanced --models ./models --task c0_PasswordBasedEncryption \
//	    --properties ./advanced.yaml --out ./configs --package configs
//	featgen serve --models ./models --listen-addr 0.0.0.0:8080 \
//	    --db-driver sqlite --db-source ./runs.db --watch
//	featgen runs --db-source ./runs.db list
package main
