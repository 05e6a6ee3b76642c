package command

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"github.com/keshon/yomiage/internal/logging"
)

type Middleware func(Command) Command

type wrappedCommand struct {
	Command
	wrap func(ctx interface{}) error
}

func (w *wrappedCommand) Run(ctx interface{}) error {
	if w.wrap != nil {
		return w.wrap(ctx)
	}
	return w.Command.Run(ctx)
}

func (w *wrappedCommand) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := w.Command.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func ApplyMiddlewares(cmd Command, mws ...Middleware) Command {
	for _, mw := range mws {
		cmd = mw(cmd)
	}
	return cmd
}

// WithGuildOnly silently ignores invocations outside a guild.
func WithGuildOnly() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				if v, ok := ctx.(*SlashInteractionContext); ok && v.Event.GuildID == "" {
					return nil
				}
				return cmd.Run(ctx)
			},
		}
	}
}

// WithAdminOnly rejects commands that RequireAdmin when the caller lacks
// Manage Server.
func WithAdminOnly() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				v, ok := ctx.(*SlashInteractionContext)
				if !ok || !cmd.RequireAdmin() {
					return cmd.Run(ctx)
				}
				m := v.Event.Member
				if m == nil || m.Permissions&(discordgo.PermissionManageServer|discordgo.PermissionAdministrator) == 0 {
					return v.Reply(&discordgo.MessageEmbed{
						Title:       "Permission denied",
						Description: "You need the Manage Server permission to use this command.",
					}, true)
				}
				return cmd.Run(ctx)
			},
		}
	}
}

// WithCommandLogger logs each slash invocation and its result.
func WithCommandLogger() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				start := time.Now()
				err := cmd.Run(ctx)

				v, ok := ctx.(*SlashInteractionContext)
				if !ok {
					return err
				}
				var l *log.Logger
				if v.Deps != nil {
					l = v.Deps.Logger
				}
				l = logging.For(l, "command")

				user := v.Caller()
				fields := []interface{}{
					"command", cmd.Name(),
					"guild", v.Event.GuildID,
					"channel", v.Event.ChannelID,
					"took", time.Since(start),
				}
				if user != nil {
					fields = append(fields, "user", user.ID, "username", user.Username)
				}
				if err != nil {
					l.Warn("Command failed", append(fields, "err", err)...)
				} else {
					l.Info("Command executed", fields...)
				}
				return err
			},
		}
	}
}
