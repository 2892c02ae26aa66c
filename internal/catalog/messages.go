package catalog

import (
	"encoding/json"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

// jsonCodec carries catalog messages as JSON over gRPC.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

type getProductRequest struct {
	ID string `json:"id"`
}

type getProductResponse struct {
	Product *productMessage `json:"product"`
}

type productMessage struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Brand     string `json:"brand"`
	Price     string `json:"price"`
	ImageURL  string `json:"imageUrl"`
	Inventory int    `json:"inventory"`
}

func (m *productMessage) toDomain() (*domain.Product, error) {
	price, err := parsePrice(m.Price)
	if err != nil {
		return nil, err
	}
	return &domain.Product{
		ID:        m.ID,
		Name:      m.Name,
		Brand:     m.Brand,
		Price:     price,
		ImageURL:  m.ImageURL,
		Inventory: m.Inventory,
	}, nil
}

type itemCheckMessage struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type validateCartItemsRequest struct {
	Items []itemCheckMessage `json:"items"`
}

type validationMessage struct {
	ProductID         string `json:"productId"`
	Valid             bool   `json:"valid"`
	Message           string `json:"message"`
	CurrentPrice      string `json:"currentPrice"`
	AvailableQuantity int    `json:"availableQuantity"`
}

// toDomain requires a price only on valid lines; rejected lines may omit it.
func (m validationMessage) toDomain() (domain.ItemValidation, error) {
	v := domain.ItemValidation{
		ProductID:         m.ProductID,
		Valid:             m.Valid,
		Message:           m.Message,
		AvailableQuantity: m.AvailableQuantity,
	}
	if !m.Valid && m.CurrentPrice == "" {
		return v, nil
	}
	price, err := parsePrice(m.CurrentPrice)
	if err != nil {
		return domain.ItemValidation{}, err
	}
	v.CurrentPrice = price
	return v, nil
}

type validateCartItemsResponse struct {
	Results []validationMessage `json:"results"`
}
