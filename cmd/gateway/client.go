package main

import (
	"context"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mailboxgw/internal/config"
	"mailboxgw/internal/gateway"
	"mailboxgw/internal/logger"
	"mailboxgw/internal/mailbox"
	"mailboxgw/internal/service"
)

// withClient 运维子命令直接通过邮箱客户端访问对象存储，不经过 HTTP
func withClient(cmd *cobra.Command, configPath string, fn func(ctx context.Context, c *mailbox.Client) (any, error)) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	// 子命令的输出是 JSON，日志只写到 stderr
	log := logger.NewWithWriter(cfg, cmd.ErrOrStderr()).Level(zerolog.WarnLevel)

	mgr, err := service.NewManager(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Shutdown() }()

	out, err := fn(cmd.Context(), mgr.GetMailboxClient())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newSubmitCmd(configPath *string) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "submit <bundle-id>",
		Short: "向 requests 区域提交请求",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, *configPath, func(ctx context.Context, c *mailbox.Client) (any, error) {
				return c.Submit(ctx, args[0], sessionID)
			})
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "会话 ID，为空时自动生成")
	return cmd
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <session> <request-id>",
		Short: "查询请求状态",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, field := range []string{"session_id", "request_id"} {
				if err := mailbox.ValidateIdentifier(field, args[i]); err != nil {
					return err
				}
			}
			return withClient(cmd, *configPath, func(ctx context.Context, c *mailbox.Client) (any, error) {
				res, err := c.CheckStatus(ctx, args[0], args[1])
				if err != nil {
					return nil, err
				}
				_, body := gateway.StatusBody(res)
				return body, nil
			})
		},
	}
}

func newShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session> <request-id>",
		Short: "解码并显示已提交的请求",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, field := range []string{"session_id", "request_id"} {
				if err := mailbox.ValidateIdentifier(field, args[i]); err != nil {
					return err
				}
			}
			return withClient(cmd, *configPath, func(ctx context.Context, c *mailbox.Client) (any, error) {
				return c.Request(ctx, args[0], args[1])
			})
		},
	}
}

func newRequestsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "requests",
		Short: "列出所有待处理请求",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, *configPath, func(ctx context.Context, c *mailbox.Client) (any, error) {
				return c.ListRequests(ctx)
			})
		},
	}
}

func newResponsesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "responses <session>",
		Short: "列出会话的响应",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := mailbox.ValidateIdentifier("session_id", args[0]); err != nil {
				return err
			}
			return withClient(cmd, *configPath, func(ctx context.Context, c *mailbox.Client) (any, error) {
				return c.ListResponses(ctx, args[0])
			})
		},
	}
}
