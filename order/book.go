package order

import (
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Book is the full set of orders that were collected for a single trading
// interval.
type Book struct {
	// Bids are the buy orders in submission order.
	Bids []Order

	// Offers are the sell orders in submission order.
	Offers []Order
}

// rawBook is the on-disk shape of a book. Each order is written as a
// [price, quantity, participant] triple.
type rawBook struct {
	Bids   []triple `yaml:"bids"`
	Offers []triple `yaml:"offers"`
}

// triple is a single [price, quantity, participant] entry.
type triple struct {
	price       decimal.Decimal
	quantity    decimal.Decimal
	participant ParticipantID
}

// UnmarshalYAML decodes a three element sequence into a triple.
func (t *triple) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 3 {
		return fmt.Errorf("line %d: order must be a [price, quantity, "+
			"participant] triple", node.Line)
	}

	price, err := decimal.NewFromString(node.Content[0].Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid price: %w", node.Line, err)
	}
	quantity, err := decimal.NewFromString(node.Content[1].Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid quantity: %w", node.Line,
			err)
	}

	t.price = price
	t.quantity = quantity
	t.participant = ParticipantID(node.Content[2].Value)

	return nil
}

// MarshalYAML encodes the triple as a flow style sequence.
func (t triple) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{
		Kind:  yaml.SequenceNode,
		Style: yaml.FlowStyle,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: t.price.String()},
			{Kind: yaml.ScalarNode, Value: t.quantity.String()},
			{Kind: yaml.ScalarNode, Value: string(t.participant)},
		},
	}

	return node, nil
}

// UnmarshalYAML decodes a book from its on-disk representation.
func (b *Book) UnmarshalYAML(node *yaml.Node) error {
	var raw rawBook
	if err := node.Decode(&raw); err != nil {
		return err
	}

	b.Bids = make([]Order, 0, len(raw.Bids))
	for _, t := range raw.Bids {
		b.Bids = append(b.Bids, NewBid(t.price, t.quantity, t.participant))
	}

	b.Offers = make([]Order, 0, len(raw.Offers))
	for _, t := range raw.Offers {
		b.Offers = append(
			b.Offers, NewOffer(t.price, t.quantity, t.participant),
		)
	}

	return nil
}

// MarshalYAML encodes a book into its on-disk representation.
func (b Book) MarshalYAML() (interface{}, error) {
	toTriples := func(orders []Order) []triple {
		triples := make([]triple, 0, len(orders))
		for _, o := range orders {
			triples = append(triples, triple{
				price:       o.Price,
				quantity:    o.Quantity,
				participant: o.Participant,
			})
		}

		return triples
	}

	return rawBook{
		Bids:   toTriples(b.Bids),
		Offers: toTriples(b.Offers),
	}, nil
}

// DecodeBook reads a single YAML encoded book from the given reader.
func DecodeBook(r io.Reader) (*Book, error) {
	var book Book
	if err := yaml.NewDecoder(r).Decode(&book); err != nil {
		return nil, fmt.Errorf("unable to decode order book: %w", err)
	}

	return &book, nil
}

// ReadBookFile reads a YAML encoded book from the file at the given path.
func ReadBookFile(path string) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeBook(f)
}
