package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) createAdmin(email, name, pwd string) error {
	ctx := context.Background()
	if err := cli.usrSvc.SeedRoles(ctx); err != nil {
		return err
	}
	usr, err := cli.usrSvc.CreateAdmin(ctx, email, name, pwd)
	if err != nil {
		return err
	}
	fmt.Printf("admin %s ready\n", usr.Email)
	return nil
}
