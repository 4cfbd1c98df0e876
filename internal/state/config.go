package state

import (
	"path/filepath"
	"sync"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/vendsim/currency"
	"github.com/temoto/vendsim/helpers"
	"github.com/temoto/vendsim/log2"
	tele_config "github.com/temoto/vendsim/tele/config"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Money struct {
		// multiplier for integer prices in config, 1 = pence
		Scale int `hcl:"scale"`
	}
	Inventory struct {
		Products []ProductConfig `hcl:"product"`
		Coins    []CoinConfig    `hcl:"coin"`
	}
	Log struct {
		Debug bool `hcl:"debug"`
	}
	Metrics struct {
		// empty disables HTTP endpoint
		Listen string `hcl:"listen"`
	}
	Console struct {
		Prompt string `hcl:"prompt"`
		// ask before removing more than available
		ConfirmUnload bool `hcl:"confirm_unload"`
	}
	Tele tele_config.Config

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

type ProductConfig struct {
	Name  string `hcl:"name,key"`
	Price int    `hcl:"price"`
	Stock int    `hcl:"stock"`
}

type CoinConfig struct {
	Name  string `hcl:"name,key"`
	Count int    `hcl:"count"`
}

func (c *Config) ScaleI(i int) currency.Amount {
	return currency.Amount(i) * currency.Amount(c.Money.Scale)
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	// hcl decodes lists from index 0, stash to append across includes
	products, coins := c.Inventory.Products, c.Inventory.Coins
	c.Inventory.Products, c.Inventory.Coins = nil, nil
	err = hcl.Unmarshal(bs, c)
	c.Inventory.Products = append(products, c.Inventory.Products...)
	c.Inventory.Coins = append(coins, c.Inventory.Coins...)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
