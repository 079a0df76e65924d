// lessondata-cli 是运维命令行：创建登录账号、查看 marketplace 游戏、校验数据、管理安全快照。
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/yitongOE/LessonData/internal/version"
)

func main() {
	_ = godotenv.Load()

	rt := &runtime{}
	app := &cli.Command{
		Name:      "lessondata-cli",
		Usage:     "LessonData 控制台运维工具",
		UsageText: "lessondata-cli [global options] command [command options]",
		Version:   version.Info().String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "YAML 配置文件路径",
				Sources:     cli.EnvVars("LESSONDATA_CONFIG"),
				Destination: &rt.configPath,
			},
		},
		After: func(ctx context.Context, c *cli.Command) error {
			rt.Close()
			return nil
		},
	}

	app = newUserCmd(rt).Register(app)
	app = newGamesCmd(rt).Register(app)
	app = newPreviewCmd(rt).Register(app)
	app = newCheckCmd(rt).Register(app)
	app = newSnapshotCmd(rt).Register(app)
	app = newRestoreCmd(rt).Register(app)
	app = newAuditCmd(rt).Register(app)

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("命令执行失败", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
