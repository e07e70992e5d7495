package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-funnel/internal/domain/cart"
	"github.com/xenking/kart-funnel/internal/domain/order"
	"github.com/xenking/kart-funnel/internal/domain/pricing"
	"github.com/xenking/kart-funnel/internal/session"
)

type command struct {
	args  string
	help  string
	nargs [2]int
	run   func(ctx context.Context, s *session.Session, w io.Writer, args []string) error
}

var commands = map[string]command{
	"products": {
		args: "[term]", help: "List or search products", nargs: [2]int{0, 1},
		run: func(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
			items := s.Products(ctx)
			if len(args) == 1 {
				items = s.Search(args[0])
			}
			return printItems(w, items)
		},
	},
	"packages": {
		args: "[term]", help: "List or search packages", nargs: [2]int{0, 1},
		run: func(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
			items := s.Packages(ctx)
			if len(args) == 1 {
				items = s.SearchPackages(args[0])
			}
			return printItems(w, items)
		},
	},
	"add": {
		args: "<id>", help: "Add a product to the cart", nargs: [2]int{1, 1},
		run: func(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
			s.Products(ctx)
			lines, err := s.AddProductByID(ctx, args[0])
			if err != nil {
				return errors.Wrapf(err, "add %s", args[0])
			}
			return printLines(w, lines)
		},
	},
	"add-package": {
		args: "<id>", help: "Add a package to the basket", nargs: [2]int{1, 1},
		run: func(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
			s.Packages(ctx)
			lines, err := s.AddPackageByID(ctx, args[0])
			if err != nil {
				return errors.Wrapf(err, "add package %s", args[0])
			}
			return printLines(w, lines)
		},
	},
	"set": {
		args: "<id> <quantity>", help: "Set a cart line quantity (0 removes)", nargs: [2]int{2, 2},
		run: func(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrap(err, "parse quantity")
			}
			lines, err := s.SetProductQuantity(ctx, args[0], n)
			if err != nil {
				return err
			}
			return printLines(w, lines)
		},
	},
	"set-package": {
		args: "<id> <quantity>", help: "Set a basket line quantity (0 removes)", nargs: [2]int{2, 2},
		run: func(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrap(err, "parse quantity")
			}
			lines, err := s.SetPackageQuantity(ctx, args[0], n)
			if err != nil {
				return err
			}
			return printLines(w, lines)
		},
	},
	"remove": {
		args: "<id>", help: "Remove a cart line", nargs: [2]int{1, 1},
		run: func(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
			return printLines(w, s.RemoveProduct(ctx, args[0]))
		},
	},
	"remove-package": {
		args: "<id>", help: "Remove a basket line", nargs: [2]int{1, 1},
		run: func(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
			return printLines(w, s.RemovePackage(ctx, args[0]))
		},
	},
	"clear": {
		args: "[cart|basket|all]", help: "Empty the cart, the basket or both", nargs: [2]int{0, 1},
		run: func(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
			switch sc := scopeArg(args, 0); sc {
			case session.ScopeCart:
				s.ClearCart(ctx)
			case session.ScopeBasket:
				s.ClearBasket(ctx)
			case session.ScopeAll:
				s.ClearCart(ctx)
				s.ClearBasket(ctx)
			default:
				return &session.UnknownScopeError{Scope: sc}
			}
			return nil
		},
	},
	"show": {
		args: "[cart|basket|all]", help: "Show lines and totals", nargs: [2]int{0, 1},
		run: func(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
			sc := scopeArg(args, 0)
			totals, err := s.Totals(sc)
			if err != nil {
				return err
			}
			if sc != session.ScopeBasket {
				if err := printLines(w, s.Cart()); err != nil {
					return err
				}
			}
			if sc != session.ScopeCart {
				if err := printLines(w, s.Basket()); err != nil {
					return err
				}
			}
			return printTotals(w, totals)
		},
	},
	"quote": {
		args: "<coupon> [cart|basket|all]", help: "Show totals with a coupon applied", nargs: [2]int{1, 2},
		run: func(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
			totals, err := s.ApplyCoupon(ctx, args[0], scopeArg(args, 1))
			if err != nil {
				return err
			}
			return printTotals(w, totals)
		},
	},
	"checkout": {
		args: "[cart|basket|all] [coupon]", help: "Place an order", nargs: [2]int{0, 2},
		run: func(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
			sc := scopeArg(args, 0)
			if len(args) == 2 {
				if _, err := s.ApplyCoupon(ctx, args[1], sc); err != nil {
					return err
				}
			}
			o, err := s.Checkout(ctx, sc)
			if err != nil {
				return err
			}
			return printOrder(w, o)
		},
	},
	"refresh": {
		help: "Re-fetch both catalogs",
		run: func(ctx context.Context, s *session.Session, w io.Writer, _ []string) error {
			refreshErr := s.RefreshCatalog(ctx)
			if _, err := fmt.Fprintf(w, "%d products, %d packages\n", len(s.Products(ctx)), len(s.Packages(ctx))); err != nil {
				return err
			}
			return refreshErr
		},
	},
}

func run(ctx context.Context, s *session.Session, w io.Writer, args []string) error {
	if len(args) == 0 || args[0] == "help" {
		return usage(w)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errors.Errorf("unknown command %q", args[0])
	}
	rest := args[1:]
	if len(rest) < cmd.nargs[0] || len(rest) > cmd.nargs[1] {
		return errors.Errorf("usage: kart %s %s", args[0], cmd.args)
	}
	return cmd.run(ctx, s, w, rest)
}

func usage(w io.Writer) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "usage: kart [-name=value ...] <command> [args]")
	for _, name := range names {
		cmd := commands[name]
		_, _ = fmt.Fprintf(tw, "  %s %s\t%s\n", name, cmd.args, cmd.help)
	}
	return tw.Flush()
}

func scopeArg(args []string, i int) session.Scope {
	if len(args) > i {
		return session.Scope(args[i])
	}
	return session.ScopeAll
}

func printItems[T cart.Item](w io.Writer, items []T) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, it := range items {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", it.ItemID(), it.ItemName(), it.UnitPrice().StringFixed(2))
	}
	return tw.Flush()
}

func printLines[T cart.Item](w io.Writer, lines []cart.Line[T]) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, l := range lines {
		_, _ = fmt.Fprintf(tw, "%s\t%s\tx%d\t%s\n",
			l.Item.ItemID(), l.Item.ItemName(), l.Quantity, l.Total().StringFixed(2))
	}
	return tw.Flush()
}

func printTotals(w io.Writer, t pricing.Totals) error {
	_, err := fmt.Fprintf(w, "subtotal %s\ndiscount %s\ntotal    %s\n",
		t.Subtotal.StringFixed(2), t.Discount.StringFixed(2), t.Total.StringFixed(2))
	return err
}

func printOrder(w io.Writer, o *order.Order) error {
	if _, err := fmt.Fprintf(w, "order %s %s\n", o.ID, o.Status); err != nil {
		return err
	}
	if o.CouponCode != "" {
		if _, err := fmt.Fprintf(w, "coupon %s\n", o.CouponCode); err != nil {
			return err
		}
	}
	return printTotals(w, pricing.Totals{Subtotal: o.Subtotal, Discount: o.Discount, Total: o.Total})
}
