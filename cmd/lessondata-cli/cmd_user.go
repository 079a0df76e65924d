package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/yitongOE/LessonData/internal/auth"
)

const minPasswordLen = 8

type userCmd struct {
	rt *runtime

	email    string
	password string
}

func newUserCmd(rt *runtime) *userCmd {
	return &userCmd{rt: rt}
}

func (cmd *userCmd) Register(app *cli.Command) *cli.Command {
	emailFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:        "email",
			Usage:       "登录邮箱",
			Required:    true,
			Destination: &cmd.email,
		}
	}
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "user",
		Usage: "管理控制台登录账号",
		Description: `登录账号只保存邮箱与密码哈希；角色由 AdminData.csv 决定。
账号不在 AdminData.csv 中或未启用时仍然无法登录。`,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "创建账号，已存在时重置密码并重新启用",
				UsageText: "lessondata-cli user add --email <email> [--password <password>]",
				Flags: []cli.Flag{
					emailFlag(),
					&cli.StringFlag{
						Name:        "password",
						Usage:       "密码；省略时在终端中交互输入",
						Sources:     cli.EnvVars("LESSONDATA_USER_PASSWORD"),
						Destination: &cmd.password,
					},
				},
				Action: cmd.add,
			},
			{
				Name:      "disable",
				Usage:     "禁用账号",
				UsageText: "lessondata-cli user disable --email <email>",
				Flags:     []cli.Flag{emailFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					return cmd.setStatus(ctx, 0)
				},
			},
			{
				Name:      "enable",
				Usage:     "启用账号",
				UsageText: "lessondata-cli user enable --email <email>",
				Flags:     []cli.Flag{emailFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					return cmd.setStatus(ctx, 1)
				},
			},
		},
	})
	return app
}

func (cmd *userCmd) add(ctx context.Context, c *cli.Command) error {
	if cmd.password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("非交互环境下必须通过 --password 或 LESSONDATA_USER_PASSWORD 提供密码")
		}
		if err := cmd.promptPassword(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return fmt.Errorf("输入密码: %w", err)
		}
	}
	if err := validatePassword(cmd.password); err != nil {
		return err
	}

	st, err := cmd.rt.Store()
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(cmd.password)
	if err != nil {
		return err
	}
	if err := st.UpsertUser(ctx, cmd.email, hash); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "账号 %s 已保存\n", strings.ToLower(strings.TrimSpace(cmd.email)))
	return nil
}

func (cmd *userCmd) promptPassword() error {
	var confirm string
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("密码").
				Description(fmt.Sprintf("至少 %d 个字符", minPasswordLen)).
				EchoMode(huh.EchoModePassword).
				Validate(validatePassword).
				Value(&cmd.password),
			huh.NewInput().
				Title("确认密码").
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if s != cmd.password {
						return errors.New("两次输入不一致")
					}
					return nil
				}).
				Value(&confirm),
		),
	).Run()
}

func validatePassword(pw string) error {
	if len([]rune(pw)) < minPasswordLen {
		return fmt.Errorf("密码至少 %d 个字符", minPasswordLen)
	}
	return nil
}

func (cmd *userCmd) setStatus(ctx context.Context, status int) error {
	st, err := cmd.rt.Store()
	if err != nil {
		return err
	}
	u, err := st.GetUserByEmail(ctx, cmd.email)
	if err != nil {
		return fmt.Errorf("查找账号 %s: %w", cmd.email, err)
	}
	return st.SetUserStatus(ctx, u.ID, status)
}
