package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errUsage = errors.New("usage: revoke <user id>")

// Register prompts for username, email and password and creates the
// account. Email may be left empty.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email (optional)", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	id, err := a.client.Register(ctx, userName, email, password)
	if err != nil {
		return err
	}

	printlnFn(fmt.Sprintf("Registered user %d", id))
	return nil
}

// Login prompts for credentials and stores the issued token pair in the
// client.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.Login(ctx, userName, password); err != nil {
		return err
	}

	a.userName = userName
	printlnFn("Login successful")
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.client.Refresh(ctx); err != nil {
		return err
	}
	printlnFn("Tokens refreshed")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	who, err := a.client.WhoAmI(ctx)
	if err != nil {
		return err
	}

	printlnFn(fmt.Sprintf("user id: %d, token expires: %s", who.UserID, who.ExpiresAt.Local().Format(time.RFC3339)))
	for _, c := range who.Claims {
		printlnFn(fmt.Sprintf("  %s = %s", c.Type, c.Value))
	}
	return nil
}

func (a *App) Revoke(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errUsage
	}

	if err := a.client.Revoke(ctx, id); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Refresh token of user %d revoked", id))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	err := a.client.Logout(ctx)
	a.userName = ""
	return err
}
