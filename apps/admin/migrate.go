package main

import (
	"context"
	"fmt"

	"github.com/trezcool/recqa/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(args[0], cli.db, args[1:]...)
}

// createTable runs the idempotent teacher_grades script.
func (cli *commandLine) createTable() error {
	if err := cli.gradeSvc.CreateTable(context.Background()); err != nil {
		return err
	}
	fmt.Println("teacher_grades table is ready")
	return nil
}
