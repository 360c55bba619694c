package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/bookclub/internal/client/bookclub"
	"github.com/iudanet/bookclub/internal/models"
)

func (c *Cli) comunidadesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "comunidades",
		Aliases: []string{"communities"},
		Short:   "Create, join and leave reading communities",
	}

	var descricao string
	create := &cobra.Command{
		Use:   "create <nome>",
		Short: "Create a community you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comunidades := c.app.Comunidades
			return c.withReader(cmd.Context(), []readiness{comunidades.Store()}, func(ctx context.Context, _ models.Actor) error {
				res := comunidades.CreateComunidade(ctx, args[0], descricao)
				return c.report(res, "Community created: %s", res.ID)
			})
		},
	}
	create.Flags().StringVarP(&descricao, "descricao", "d", "", "Description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the communities I belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comunidades := c.app.Comunidades
			return c.withReader(cmd.Context(), []readiness{comunidades.Store()}, func(ctx context.Context, actor models.Actor) error {
				items := comunidades.ComunidadesOf(actor.ID)
				if len(items) == 0 {
					c.io.Println("You are not a member of any community.")
					return nil
				}
				for _, cm := range items {
					role := "member"
					if cm.OwnerID == actor.ID {
						role = "owner"
					}
					c.io.Printf("  %s  %s (%d members, %s)\n", cm.ID, cm.Nome, len(cm.Membros), role)
				}
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a community and its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comunidades := c.app.Comunidades
			return c.withReader(cmd.Context(), []readiness{comunidades.Store()}, func(ctx context.Context, _ models.Actor) error {
				cm, ok := comunidades.Comunidade(args[0])
				if !ok {
					c.io.Println("Community not found.")
					return nil
				}
				c.io.Printf("Name:        %s\n", cm.Nome)
				c.io.Printf("Description: %s\n", cm.Descricao)
				c.io.Printf("Owner:       %s\n", cm.OwnerID)
				c.io.Printf("Members:     %s\n", strings.Join(cm.Membros, ", "))
				return nil
			})
		},
	}

	var nome, novaDescricao string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or describe a community you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comunidades := c.app.Comunidades
			return c.withReader(cmd.Context(), []readiness{comunidades.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(comunidades.UpdateComunidade(ctx, args[0], nome, novaDescricao), "Community updated")
			})
		},
	}
	update.Flags().StringVar(&nome, "nome", "", "New name")
	update.Flags().StringVarP(&novaDescricao, "descricao", "d", "", "New description")

	join := &cobra.Command{
		Use:   "join <id>",
		Short: "Join a community",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comunidades := c.app.Comunidades
			return c.withReader(cmd.Context(), []readiness{comunidades.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(comunidades.JoinComunidade(ctx, args[0]), "Joined community")
			})
		},
	}

	leave := &cobra.Command{
		Use:   "leave <id>",
		Short: "Leave a community",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comunidades := c.app.Comunidades
			return c.withReader(cmd.Context(), []readiness{comunidades.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(comunidades.LeaveComunidade(ctx, args[0]), "Left community")
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove-member <id> <member-id>",
		Short: "Remove a member from a community you own",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			comunidades := c.app.Comunidades
			return c.withReader(cmd.Context(), []readiness{comunidades.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(comunidades.RemoveMember(ctx, args[0], args[1]), "Member removed")
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a community you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comunidades := c.app.Comunidades
			return c.withReader(cmd.Context(), []readiness{comunidades.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(comunidades.DeleteComunidade(ctx, args[0]), "Community deleted")
			})
		},
	}

	cmd.AddCommand(create, list, show, update, join, leave, remove, del)
	return cmd
}

func (c *Cli) eventosCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "eventos",
		Aliases: []string{"events"},
		Short:   "Literary events open to everyone",
	}
	cmd.AddCommand(c.eventosCreateCommand(), c.eventosListCommand(), c.eventosUpdateCommand(), c.eventosDeleteCommand())
	return cmd
}

func (c *Cli) eventosCreateCommand() *cobra.Command {
	var (
		in       bookclub.EventoInput
		data     string
		lat, lon float64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Announce an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDate(data)
			if err != nil {
				return err
			}
			in.DataInicio = start
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
				in.Coordinates = &models.Coordinates{Latitude: lat, Longitude: lon}
			}

			eventos := c.app.Eventos
			return c.withReader(cmd.Context(), []readiness{eventos.Store()}, func(ctx context.Context, _ models.Actor) error {
				res := eventos.CreateEvento(ctx, in)
				return c.report(res, "Event created: %s", res.ID)
			})
		},
	}
	cmd.Flags().StringVar(&in.Titulo, "titulo", "", "Title")
	cmd.Flags().StringVar(&data, "data", "", "Start, e.g. 2026-05-01 19:30")
	cmd.Flags().StringVar(&in.Local, "local", "", "Venue")
	cmd.Flags().StringVar(&in.Categoria, "categoria", "", "Category")
	cmd.Flags().StringVar(&in.Descricao, "descricao", "", "Description")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude of the venue")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude of the venue")
	_ = cmd.MarkFlagRequired("titulo")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func (c *Cli) eventosUpdateCommand() *cobra.Command {
	var (
		in   bookclub.EventoInput
		data string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an event you organised",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if data != "" {
				start, err := parseDate(data)
				if err != nil {
					return err
				}
				in.DataInicio = start
			}
			eventos := c.app.Eventos
			return c.withReader(cmd.Context(), []readiness{eventos.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(eventos.UpdateEvento(ctx, args[0], in), "Event updated")
			})
		},
	}
	cmd.Flags().StringVar(&in.Titulo, "titulo", "", "Title")
	cmd.Flags().StringVar(&data, "data", "", "Start, e.g. 2026-05-01 19:30")
	cmd.Flags().StringVar(&in.Local, "local", "", "Venue")
	cmd.Flags().StringVar(&in.Categoria, "categoria", "", "Category")
	cmd.Flags().StringVar(&in.Descricao, "descricao", "", "Description")
	return cmd
}

func (c *Cli) eventosListCommand() *cobra.Command {
	var categoria string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List upcoming events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eventos := c.app.Eventos
			return c.withApp(cmd.Context(), []readiness{eventos.Store()}, func(ctx context.Context) error {
				var items []models.Evento
				if categoria != "" {
					items = eventos.EventosByCategoria(categoria)
				} else {
					items = eventos.UpcomingEventos()
				}

				if len(items) == 0 {
					c.io.Println("No events found.")
					return nil
				}
				for _, ev := range items {
					c.io.Printf("  %s  %s  %s @ %s [%s]\n",
						ev.ID, ev.DataInicio.Local().Format(time.DateTime), ev.Titulo, ev.Local, ev.Categoria)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&categoria, "categoria", "", "Only events of this category")
	return cmd
}

func (c *Cli) eventosDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Cancel an event you organised",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventos := c.app.Eventos
			return c.withReader(cmd.Context(), []readiness{eventos.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(eventos.DeleteEvento(ctx, args[0]), "Event deleted")
			})
		},
	}
}
