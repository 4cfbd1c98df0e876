package console

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/vendsim/currency"
	"github.com/temoto/vendsim/internal/coin"
	"github.com/temoto/vendsim/internal/inventory"
	"github.com/temoto/vendsim/internal/report"
	"github.com/temoto/vendsim/internal/state"
	"github.com/temoto/vendsim/internal/types"
)

const usage = `commands:
- select NAME                 choose product by name
- product INDEX               choose product by position in status list, from 0
- coin KIND                   insert coin: 1p 2p 5p 10p 20p 50p £1 £2 (or pence: 50, 100)
- return                      cancel and return inserted coins
- credit                      show selected product and inserted coins
- change AMOUNT               check machine can give change, e.g. 1.50
- status                      show products and coins
- load-product NAME PRICE QTY add product stock, e.g. load-product Tea 0.90 5
- unload-product NAME QTY     remove product stock
- load-coin KIND QTY          add coins to machine
- unload-coin KIND QTY        remove coins from machine
- help
- exit
`

var errExit = errors.New("exit")

// Console turns text commands into machine and inventory calls.
type Console struct {
	g   *state.Global
	out io.Writer
	// Confirm decides unload over available stock.
	Confirm inventory.ConfirmFunc
}

func New(g *state.Global, out io.Writer) *Console {
	c := &Console{g: g, out: out}
	c.Confirm = func(item string, requested, available int) bool {
		return g.Config.Console.ConfirmUnload
	}
	return c
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Exec runs one line. Returned error is for unexpected conditions,
// vending failures are printed for the user.
func (c *Console) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "help", "?":
		fmt.Fprint(c.out, usage)
	case "exit", "quit":
		return errExit
	case "status":
		fmt.Fprint(c.out, report.Status(c.g.Inventory))
	case "credit":
		c.doCredit()
	case "select":
		c.doSelect(strings.Join(args, " "))
	case "product":
		return c.doProductIndex(args)
	case "coin":
		return c.doCoin(args)
	case "return":
		c.doReturn()
	case "change":
		return c.doChange(args)
	case "load-product":
		return c.doLoadProduct(args)
	case "unload-product":
		return c.doUnloadProduct(args)
	case "load-coin":
		return c.doLoadCoin(args)
	case "unload-coin":
		return c.doUnloadCoin(args)
	default:
		return errors.Errorf("unknown command '%s', try help", cmd)
	}
	return nil
}

func (c *Console) Complete(d prompt.Document) []prompt.Suggest {
	before := d.TextBeforeCursor()
	fields := strings.Fields(before)
	word := d.GetWordBeforeCursor()
	if len(fields) == 0 || (len(fields) == 1 && word != "") {
		return prompt.FilterHasPrefix(commandSuggests, word, true)
	}
	switch strings.ToLower(fields[0]) {
	case "select", "unload-product":
		ps := c.g.Inventory.Products()
		ss := make([]prompt.Suggest, 0, len(ps))
		for _, p := range ps {
			ss = append(ss, prompt.Suggest{Text: p.Name, Description: report.ProductLine(p)})
		}
		return prompt.FilterFuzzy(ss, word, true)
	case "coin", "load-coin", "unload-coin":
		return prompt.FilterHasPrefix(coinSuggests, word, true)
	}
	return nil
}

func (c *Console) doCredit() {
	name, ok := c.g.Machine.Selected()
	if !ok {
		name = "none"
	}
	c.printf("Selected: %s. Inserted: %s (%s)", name, c.g.Machine.Credit().String(), report.CoinList(c.g.Machine.Inserted()))
}

func (c *Console) doSelect(name string) {
	p, err := c.g.Machine.SelectProduct(name)
	if err != nil {
		c.printf("%s", errors.Cause(err).Error())
		return
	}
	c.printf("Selected %s, price %s. Insert coins.", p.Name, p.Price.String())
	if credit := c.g.Machine.Credit(); credit != 0 {
		c.printf("Credit: %s", credit.String())
	}
}

func (c *Console) doProductIndex(args []string) error {
	if len(args) != 1 {
		return errors.NotValidf("usage: product INDEX")
	}
	i, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Annotate(err, "product index")
	}
	name, err := c.g.Inventory.GetProductNameByIndex(i)
	if err != nil {
		c.printf("%s", errors.Cause(err).Error())
		return nil
	}
	c.doSelect(name)
	return nil
}

func (c *Console) doCoin(args []string) error {
	if len(args) != 1 {
		return errors.NotValidf("usage: coin KIND")
	}
	// unknown text goes in as invalid coin, machine rejects it
	k, _ := coin.Parse(args[0])
	v, err := c.g.Machine.InsertMoney(k)
	switch {
	case err == nil:
		c.printf("%s delivered. Enjoy your product!", v.Product.Name)
		if len(v.Change) != 0 {
			c.printf("Change: %s (%s)", report.CoinList(v.Change), coin.Total(v.Change).String())
		}
	case types.IsCode(err, types.ErrorInsufficientFunds):
		c.printf("%s", errors.Cause(err).Error())
		c.printf("Credit: %s. Remaining: %s", v.Credit.String(), (v.Product.Price - v.Credit).String())
	default:
		c.printf("%s", errors.Cause(err).Error())
		if len(v.Returned) != 0 {
			c.printf("Returning all inserted coins...")
			c.printf("Coins returned: %s", report.CoinList(v.Returned))
		}
	}
	return nil
}

func (c *Console) doReturn() {
	coins := c.g.Machine.ReturnInsertedCoins(false)
	if len(coins) == 0 {
		c.printf("No coins to return.")
		return
	}
	c.printf("Returning all inserted coins...")
	c.printf("Coins returned: %s", report.CoinList(coins))
}

func (c *Console) doChange(args []string) error {
	if len(args) != 1 {
		return errors.NotValidf("usage: change AMOUNT")
	}
	a, err := currency.ParseAmount(args[0])
	if err != nil {
		return err
	}
	if err = c.g.Machine.CanGiveChange(a); err != nil {
		c.printf("%s", errors.Cause(err).Error())
		return nil
	}
	c.printf("Change %s available.", a.String())
	return nil
}

func (c *Console) doLoadProduct(args []string) error {
	if len(args) < 3 {
		return errors.NotValidf("usage: load-product NAME PRICE QTY")
	}
	n := len(args)
	name := strings.Join(args[:n-2], " ")
	price, err := currency.ParseAmount(args[n-2])
	if err != nil {
		return err
	}
	qty, err := strconv.Atoi(args[n-1])
	if err != nil {
		return errors.Annotate(err, "quantity")
	}
	if _, err = c.g.Inventory.LoadProducts([]inventory.Product{{Name: name, Price: price, Stock: qty}}); err != nil {
		return c.userError(err)
	}
	p, _ := c.g.Inventory.Product(name)
	c.printf("Loaded %s, price %s, stock %d.", p.Name, p.Price.String(), p.Stock)
	return nil
}

func (c *Console) doUnloadProduct(args []string) error {
	if len(args) < 2 {
		return errors.NotValidf("usage: unload-product NAME QTY")
	}
	n := len(args)
	name := strings.Join(args[:n-1], " ")
	qty, err := strconv.Atoi(args[n-1])
	if err != nil {
		return errors.Annotate(err, "quantity")
	}
	removed, err := c.g.Inventory.UnloadProducts([]inventory.ProductQty{{Name: name, Qty: qty}}, c.Confirm)
	if err != nil {
		return c.userError(err)
	}
	c.printf("Removed %d of %s.", removed, name)
	return nil
}

func (c *Console) doLoadCoin(args []string) error {
	list, err := parseCoinQty(args, "load-coin")
	if err != nil {
		return err
	}
	loaded, err := c.g.Inventory.LoadCoins(list)
	if err != nil {
		return c.userError(err)
	}
	c.printf("Loaded %d x %s.", loaded, list[0].Kind.String())
	return nil
}

func (c *Console) doUnloadCoin(args []string) error {
	list, err := parseCoinQty(args, "unload-coin")
	if err != nil {
		return err
	}
	removed, err := c.g.Inventory.UnloadCoins(list, c.Confirm)
	if err != nil {
		return c.userError(err)
	}
	c.printf("Removed %d x %s.", removed, list[0].Kind.String())
	return nil
}

// userError prints expected failures, passes through the rest.
func (c *Console) userError(err error) error {
	if types.CodeOf(err) == types.ErrorMachine {
		return err
	}
	c.printf("%s", errors.Cause(err).Error())
	return nil
}

func parseCoinQty(args []string, cmd string) ([]inventory.CoinQty, error) {
	if len(args) != 2 {
		return nil, errors.NotValidf("usage: %s KIND QTY", cmd)
	}
	k, err := coin.Parse(args[0])
	if err != nil {
		return nil, err
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, errors.Annotate(err, "quantity")
	}
	return []inventory.CoinQty{{Kind: k, Qty: qty}}, nil
}

var commandSuggests = []prompt.Suggest{
	{Text: "select", Description: "choose product by name"},
	{Text: "product", Description: "choose product by index"},
	{Text: "coin", Description: "insert coin"},
	{Text: "return", Description: "return inserted coins"},
	{Text: "credit", Description: "show current transaction"},
	{Text: "change", Description: "check change availability"},
	{Text: "status", Description: "show inventory"},
	{Text: "load-product"},
	{Text: "unload-product"},
	{Text: "load-coin"},
	{Text: "unload-coin"},
	{Text: "help"},
	{Text: "exit"},
}

var coinSuggests = func() []prompt.Suggest {
	kinds := coin.Descending()
	ss := make([]prompt.Suggest, len(kinds))
	for i, k := range kinds {
		ss[i] = prompt.Suggest{Text: k.String(), Description: k.Value().String()}
	}
	return ss
}()
