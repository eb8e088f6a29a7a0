package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/ragavivenugopal/ecom-app/internal/cart"
	"github.com/ragavivenugopal/ecom-app/internal/domain"
	"github.com/ragavivenugopal/ecom-app/internal/order"
	"github.com/ragavivenugopal/ecom-app/internal/query"
	"github.com/ragavivenugopal/ecom-app/internal/registry"
	"github.com/ragavivenugopal/ecom-app/internal/store"
	"github.com/ragavivenugopal/ecom-app/pkg/metrics"
)

type app struct {
	registry *registry.Registry
	cart     *cart.Manager
	engine   *order.Engine
	queries  *query.Queries
}

type section struct {
	Name        string
	Description string
}

type model struct {
	app        *app
	customerID int64

	sections []section
	selected int
	lines    []string
	status   string
	busy     bool
}

func initialModel(a *app, customerID int64) model {
	return model{
		app:        a,
		customerID: customerID,
		sections: []section{
			{"products", "Product catalog"},
			{"customers", "Registered customers"},
			{"cart", "Cart for -customer"},
			{"orders", "Orders for -customer"},
		},
		status: "Ready",
	}
}

func (m model) Init() tea.Cmd {
	return loadSectionCmd(m.app, m.sections[m.selected].Name, m.customerID)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up":
			if m.selected > 0 {
				m.selected--
			}
		case "down":
			if m.selected < len(m.sections)-1 {
				m.selected++
			}
		case "enter", "r":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Loading..."
			return m, loadSectionCmd(m.app, m.sections[m.selected].Name, m.customerID)
		}
	case sectionLoaded:
		m.busy = false
		m.status = msg.status
		m.lines = msg.lines
	}
	return m, nil
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "ecom-app CLI")
	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Sections:")
	for i, s := range m.sections {
		marker := " "
		if i == m.selected {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %s - %s\n", marker, s.Name, s.Description)
	}
	fmt.Fprintln(b, "")
	for _, line := range m.lines {
		fmt.Fprintf(b, "  %s\n", line)
	}
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Status: %s\n", m.status)
	fmt.Fprintln(b, "\nControls: up/down select section, enter/r load, q to quit")
	return b.String()
}

type sectionLoaded struct {
	status string
	lines  []string
}

func loadSectionCmd(a *app, name string, customerID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		switch name {
		case "products":
			products, err := a.registry.ListProducts(ctx)
			if err != nil {
				return sectionLoaded{status: fmt.Sprintf("Load failed: %v", err)}
			}
			lines := make([]string, 0, len(products))
			for _, p := range products {
				lines = append(lines, fmt.Sprintf("#%d %s price=%s stock=%d", p.ID, p.Name, p.Price.StringFixed(2), p.StockQuantity))
			}
			return sectionLoaded{status: fmt.Sprintf("%d products", len(products)), lines: lines}
		case "customers":
			customers, err := a.registry.ListCustomers(ctx)
			if err != nil {
				return sectionLoaded{status: fmt.Sprintf("Load failed: %v", err)}
			}
			lines := make([]string, 0, len(customers))
			for _, c := range customers {
				lines = append(lines, fmt.Sprintf("#%d %s <%s>", c.ID, c.Name, c.Email))
			}
			return sectionLoaded{status: fmt.Sprintf("%d customers", len(customers)), lines: lines}
		case "cart":
			views, err := a.cart.List(ctx, customerID)
			if err != nil {
				return sectionLoaded{status: fmt.Sprintf("Load failed: %v", err)}
			}
			lines := make([]string, 0, len(views))
			for _, v := range views {
				lines = append(lines, fmt.Sprintf("%s x%d @ %s", v.Product.Name, v.Line.Quantity, v.Product.Price.StringFixed(2)))
			}
			return sectionLoaded{status: fmt.Sprintf("%d cart lines (customer %d)", len(views), customerID), lines: lines}
		case "orders":
			orders, err := a.queries.OrdersByCustomer(ctx, customerID)
			if err != nil {
				return sectionLoaded{status: fmt.Sprintf("Load failed: %v", err)}
			}
			lines := make([]string, 0, len(orders))
			for _, co := range orders {
				lines = append(lines, fmt.Sprintf("order #%d %s total=%s items=%d",
					co.Order.ID, co.Order.OrderDate.Format("2006-01-02 15:04"), co.Order.TotalPrice.StringFixed(2), len(co.Items)))
			}
			return sectionLoaded{status: fmt.Sprintf("%d orders (customer %d)", len(orders), customerID), lines: lines}
		}
		return sectionLoaded{status: "Unknown section"}
	}
}

func main() {
	var (
		migrate  = flag.Bool("migrate", false, "apply the database schema and exit")
		run      = flag.String("run", "", "run one operation: create-customer|create-product|delete-customer|delete-product|update-customer|add-to-cart|remove-from-cart|view-cart|place-order|cancel-order|orders-by-customer|order-by-id|orders-by-date")
		customer = flag.Int64("customer", 0, "customer id")
		product  = flag.Int64("product", 0, "product id")
		orderID  = flag.Int64("order", 0, "order id")
		qty      = flag.Int("qty", 1, "quantity")
		name     = flag.String("name", "", "customer or product name")
		email    = flag.String("email", "", "customer email")
		password = flag.String("password", "", "customer password")
		price    = flag.String("price", "0", "product price")
		desc     = flag.String("desc", "", "product description")
		stock    = flag.Int("stock", 0, "product stock quantity")
		address  = flag.String("address", "", "shipping address")
		date     = flag.String("date", "", "calendar date (YYYY-MM-DD)")
	)
	flag.Parse()

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	st, err := store.Open(ctx, databaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer st.Close()

	if *migrate {
		if err := st.Migrate(ctx); err != nil {
			log.Fatalf("migrate error: %v", err)
		}
		fmt.Println("schema applied")
		return
	}

	eng := order.New(st)
	eng.Ops = metrics.NewOpsMetrics("order_engine")

	a := &app{
		registry: registry.New(st),
		cart:     cart.New(st),
		engine:   eng,
		queries:  query.New(st),
	}

	if *run != "" {
		if err := runOp(ctx, a, *run, opArgs{
			customer: *customer, product: *product, order: *orderID, qty: *qty,
			name: *name, email: *email, password: *password,
			price: *price, desc: *desc, stock: *stock,
			address: *address, date: *date,
		}); err != nil {
			log.Fatalf("%s failed: %v", *run, err)
		}
		return
	}

	p := tea.NewProgram(initialModel(a, *customer))
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

type opArgs struct {
	customer, product, order int64
	qty, stock               int
	name, email, password    string
	price, desc              string
	address, date            string
}

func runOp(ctx context.Context, a *app, op string, args opArgs) error {
	switch op {
	case "create-customer":
		c, err := a.registry.CreateCustomer(ctx, domain.Customer{Name: args.name, Email: args.email, Password: args.password})
		if err != nil {
			return err
		}
		fmt.Printf("customer #%d created\n", c.ID)
	case "create-product":
		priceDec, err := decimal.NewFromString(args.price)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", args.price, err)
		}
		p, err := a.registry.CreateProduct(ctx, domain.Product{Name: args.name, Price: priceDec, Description: args.desc, StockQuantity: args.stock})
		if err != nil {
			return err
		}
		fmt.Printf("product #%d created\n", p.ID)
	case "delete-customer":
		if err := a.registry.DeleteCustomer(ctx, args.customer); err != nil {
			return err
		}
		fmt.Println("customer deleted")
	case "delete-product":
		if err := a.registry.DeleteProduct(ctx, args.product); err != nil {
			return err
		}
		fmt.Println("product deleted")
	case "update-customer":
		updated, err := a.registry.UpdateCustomer(ctx, domain.Customer{ID: args.customer, Name: args.name, Email: args.email, Password: args.password})
		if err != nil {
			return err
		}
		if !updated {
			fmt.Println("no customer updated")
			return nil
		}
		fmt.Println("customer updated")
	case "add-to-cart":
		line, err := a.cart.Add(ctx, args.customer, args.product, args.qty)
		if err != nil {
			return err
		}
		fmt.Printf("cart line #%d quantity=%d\n", line.ID, line.Quantity)
	case "remove-from-cart":
		line, removed, err := a.cart.Remove(ctx, args.customer, args.product)
		if err != nil {
			return err
		}
		if !removed {
			fmt.Println("product not in cart")
			return nil
		}
		fmt.Printf("removed cart line #%d (quantity was %d)\n", line.ID, line.Quantity)
	case "view-cart":
		views, err := a.cart.List(ctx, args.customer)
		if err != nil {
			return err
		}
		for _, v := range views {
			fmt.Printf("%s x%d @ %s\n", v.Product.Name, v.Line.Quantity, v.Product.Price.StringFixed(2))
		}
	case "place-order":
		snapshot, err := a.cart.List(ctx, args.customer)
		if err != nil {
			return err
		}
		ord, items, err := a.engine.Place(ctx, args.customer, snapshot, args.address, nil)
		if err != nil {
			return err
		}
		fmt.Printf("order #%d placed, total=%s, items=%d\n", ord.ID, ord.TotalPrice.StringFixed(2), len(items))
	case "cancel-order":
		if err := a.engine.Cancel(ctx, args.order); err != nil {
			return err
		}
		fmt.Println("order cancelled, stock restored")
	case "orders-by-customer":
		orders, err := a.queries.OrdersByCustomer(ctx, args.customer)
		if err != nil {
			return err
		}
		for _, co := range orders {
			fmt.Printf("order #%d %s total=%s\n", co.Order.ID, co.Order.OrderDate.Format(time.RFC3339), co.Order.TotalPrice.StringFixed(2))
			for _, iv := range co.Items {
				fmt.Printf("  %s x%d\n", iv.Product.Name, iv.Item.Quantity)
			}
		}
	case "order-by-id":
		ord, items, err := a.queries.OrderByID(ctx, args.order)
		if err != nil {
			return err
		}
		fmt.Printf("order #%d customer=%d total=%s address=%s items=%d\n",
			ord.ID, ord.CustomerID, ord.TotalPrice.StringFixed(2), ord.ShippingAddress, len(items))
	case "orders-by-date":
		day, err := time.Parse("2006-01-02", args.date)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", args.date, err)
		}
		orders, err := a.queries.OrdersByDate(ctx, day)
		if err != nil {
			return err
		}
		for _, do := range orders {
			fmt.Printf("order #%d by %s <%s> total=%s\n",
				do.Order.ID, do.Customer.Name, do.Customer.Email, do.Order.TotalPrice.StringFixed(2))
		}
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
	return nil
}
