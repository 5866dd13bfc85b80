package main

import (
	"context"
	"fmt"
	"time"

	echoapi "github.com/LucadeVeintemilla/emotionTracking/apps/api/echo"
	"github.com/LucadeVeintemilla/emotionTracking/core"
)

func (cli *commandLine) login(email, pwd string) error {
	token, err := cli.backend.Login(context.Background(), email, pwd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func (cli *commandLine) token(person core.Person, ttl time.Duration) error {
	token, err := echoapi.GenerateToken(echoapi.NewClaims(cli.conf, person, ttl), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
