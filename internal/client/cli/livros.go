package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iudanet/bookclub/internal/client/bookclub"
	"github.com/iudanet/bookclub/internal/models"
)

func (c *Cli) livrosCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "livros",
		Aliases: []string{"books"},
		Short:   "Manage the shared book catalogue",
	}
	cmd.AddCommand(c.livrosAddCommand(), c.livrosListCommand(), c.livrosUpdateCommand(), c.livrosDeleteCommand())
	return cmd
}

func (c *Cli) livrosAddCommand() *cobra.Command {
	var in bookclub.LivroInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			livros := c.app.Livros
			return c.withReader(cmd.Context(), []readiness{livros.Store()}, func(ctx context.Context, _ models.Actor) error {
				res := livros.AddLivro(ctx, in)
				return c.report(res, "Book added: %s", res.ID)
			})
		},
	}
	cmd.Flags().StringVar(&in.Titulo, "titulo", "", "Title")
	cmd.Flags().StringVar(&in.Autor, "autor", "", "Author")
	cmd.Flags().StringVar(&in.Genero, "genero", "", "Genre")
	cmd.Flags().IntVar(&in.Paginas, "paginas", 0, "Number of pages")
	_ = cmd.MarkFlagRequired("titulo")
	return cmd
}

func (c *Cli) livrosListCommand() *cobra.Command {
	var mine bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			livros := c.app.Livros
			return c.withApp(cmd.Context(), []readiness{livros.Store()}, func(ctx context.Context) error {
				var items []models.Livro
				if mine {
					actor, err := c.actor()
					if err != nil {
						return err
					}
					items = livros.LivrosOf(actor.ID)
				} else {
					items = livros.AllLivros()
				}

				if len(items) == 0 {
					c.io.Println("No books found.")
					return nil
				}
				c.io.Printf("Books (%d):\n", len(items))
				for _, l := range items {
					c.io.Printf("  %s  %q by %s [%s, %d pages]\n", l.ID, l.Titulo, l.Autor, l.Genero, l.Paginas)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "Only books I added")
	return cmd
}

func (c *Cli) livrosUpdateCommand() *cobra.Command {
	var in bookclub.LivroInput

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a book you added",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			livros := c.app.Livros
			return c.withReader(cmd.Context(), []readiness{livros.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(livros.UpdateLivro(ctx, args[0], in), "Book updated")
			})
		},
	}
	cmd.Flags().StringVar(&in.Titulo, "titulo", "", "Title")
	cmd.Flags().StringVar(&in.Autor, "autor", "", "Author")
	cmd.Flags().StringVar(&in.Genero, "genero", "", "Genre")
	cmd.Flags().IntVar(&in.Paginas, "paginas", 0, "Number of pages")
	return cmd
}

func (c *Cli) livrosDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book you added",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			livros := c.app.Livros
			return c.withReader(cmd.Context(), []readiness{livros.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(livros.DeleteLivro(ctx, args[0]), "Book deleted")
			})
		},
	}
}

func (c *Cli) citacoesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "citacoes",
		Aliases: []string{"quotes"},
		Short:   "Keep quotes from the books you read",
	}

	var pagina int
	add := &cobra.Command{
		Use:   "add <livro-id> <texto>",
		Short: "Save a quote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			citacoes := c.app.Citacoes
			return c.withReader(cmd.Context(), []readiness{citacoes.Store()}, func(ctx context.Context, _ models.Actor) error {
				res := citacoes.AddCitacao(ctx, args[0], args[1], pagina)
				return c.report(res, "Quote saved: %s", res.ID)
			})
		},
	}
	add.Flags().IntVar(&pagina, "pagina", 0, "Page number")

	list := &cobra.Command{
		Use:   "list <livro-id>",
		Short: "List my quotes from a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			citacoes := c.app.Citacoes
			return c.withReader(cmd.Context(), []readiness{citacoes.Store()}, func(ctx context.Context, _ models.Actor) error {
				items := citacoes.CitacoesForLivro(args[0])
				if len(items) == 0 {
					c.io.Println("No quotes found.")
					return nil
				}
				for _, q := range items {
					c.io.Printf("  %s  p.%d  %q\n", q.ID, q.Pagina, q.Texto)
				}
				return nil
			})
		},
	}

	var novaPagina int
	update := &cobra.Command{
		Use:   "update <id> <texto>",
		Short: "Edit a quote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			citacoes := c.app.Citacoes
			return c.withReader(cmd.Context(), []readiness{citacoes.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(citacoes.UpdateCitacao(ctx, args[0], args[1], novaPagina), "Quote updated")
			})
		},
	}
	update.Flags().IntVar(&novaPagina, "pagina", 0, "Page number")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			citacoes := c.app.Citacoes
			return c.withReader(cmd.Context(), []readiness{citacoes.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(citacoes.DeleteCitacao(ctx, args[0]), "Quote deleted")
			})
		},
	}

	cmd.AddCommand(add, list, update, del)
	return cmd
}

func (c *Cli) progressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Track reading progress",
	}

	var total int
	logCmd := &cobra.Command{
		Use:   "log <livro-id> <pagina>",
		Short: "Record the page you are on",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pagina, err := parsePositive("page", args[1])
			if err != nil {
				return err
			}
			progress := c.app.Progress
			return c.withReader(cmd.Context(), []readiness{progress.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(progress.LogProgress(ctx, args[0], pagina, total), "Progress saved: page %d", pagina)
			})
		},
	}
	logCmd.Flags().IntVar(&total, "total", 0, "Total number of pages")

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the books I am reading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			progress := c.app.Progress
			stores := []readiness{progress.Store(), c.app.Livros.Store()}
			return c.withReader(cmd.Context(), stores, func(ctx context.Context, _ models.Actor) error {
				items := progress.Reading()
				if len(items) == 0 {
					c.io.Println("Nothing in progress.")
					return nil
				}
				for _, p := range items {
					title := p.LivroID
					if l, ok := c.app.Livros.Livro(p.LivroID); ok {
						title = l.Titulo
					}
					c.io.Printf("  %-30s %d/%d (%d%%)\n", title, p.PaginaAtual, p.TotalPaginas, p.Percent())
				}
				return nil
			})
		},
	}

	cmd.AddCommand(logCmd, list)
	return cmd
}
