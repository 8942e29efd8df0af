package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/services"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func displayName(u models.User) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}

// Register prompts for a name, an email and a password and creates an
// account. Accounts that must be verified first are not logged in.
//
// The password byte slice is securely wiped before returning.
func (a *App) Register(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res := a.authService.Register(ctx, name, email, password)
	if !res.OK {
		a.reportAuthFailure("Registration", res)
		return res.Err
	}

	if res.RequiresVerification {
		fmt.Fprintln(a.out, "Account created. Check your inbox to verify it, then log in.")
		return nil
	}
	fmt.Fprintf(a.out, "Account created, welcome %s!\n", displayName(res.User))
	return nil
}

// Login prompts the user for credentials and tries to authenticate.
//
// On failure the message tells whether trying again may help (server
// unreachable or failing) or not (rejected credentials), and how many
// attempts in a row have failed. The password is securely wiped before
// returning.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res := a.authService.Login(ctx, email, password)
	if !res.OK {
		a.reportAuthFailure("Login", res)
		return res.Err
	}

	fmt.Fprintf(a.out, "Welcome, %s!\n", displayName(res.User))
	if res.RequiresVerification {
		fmt.Fprintln(a.out, "Your account is not verified yet.")
	}
	return nil
}

func (a *App) reportAuthFailure(op string, res services.AuthResult) {
	fmt.Fprintf(a.out, "%s failed: %v\n", op, res.Err)
	if res.CanRetry {
		fmt.Fprintln(a.out, "The server could not be reached or is having trouble, try again shortly.")
	}
	if res.Attempts > 1 {
		fmt.Fprintf(a.out, "Failed attempts: %d\n", res.Attempts)
	}
}

// Logout ends the session on the server when possible and always forgets
// it locally.
func (a *App) Logout(ctx context.Context) error {
	a.authService.Logout(ctx)
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// WhoAmI prints the user of the current session.
func (a *App) WhoAmI(ctx context.Context) error {
	u, ok := a.authService.CurrentUser(ctx)
	if !ok {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s> id=%s verified=%t\n", u.Name, u.Email, u.ID, u.Verified)
	return nil
}

// Reload refetches the profile of the current user.
func (a *App) Reload(ctx context.Context) error {
	u, err := a.authService.ReloadUser(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Reload failed: %v\n", err)
		return err
	}
	fmt.Fprintf(a.out, "Profile reloaded: %s\n", displayName(u))
	return nil
}
