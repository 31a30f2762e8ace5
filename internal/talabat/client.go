// Package talabat connects the lunch service to the Talabat delivery API:
// importing restaurant listings and menus, and placing the day's group order.
package talabat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"ms-lunch/internal/config"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/utils"
)

type Restaurant struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Cuisine      []string        `json:"cuisine"`
	Logo         string          `json:"logo"`
	Rating       float64         `json:"rating"`
	DeliveryTime string          `json:"deliveryTime"`
	MinimumOrder decimal.Decimal `json:"minimumOrder"`
	DeliveryFee  decimal.Decimal `json:"deliveryFee"`
	IsOpen       bool            `json:"isOpen"`
}

type MenuItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	IsAvailable bool            `json:"isAvailable"`
}

type OrderLine struct {
	ItemID              string `json:"itemId"`
	Quantity            int    `json:"quantity"`
	SpecialInstructions string `json:"specialInstructions,omitempty"`
}

type Address struct {
	Street    string `json:"street"`
	Building  string `json:"building"`
	Floor     string `json:"floor,omitempty"`
	Apartment string `json:"apartment,omitempty"`
	City      string `json:"city"`
	Area      string `json:"area"`
}

type OrderRequest struct {
	RestaurantID    string      `json:"restaurantId"`
	Items           []OrderLine `json:"items"`
	DeliveryAddress Address     `json:"deliveryAddress"`
	ContactPhone    string      `json:"contactPhone"`
	PaymentMethod   string      `json:"paymentMethod"`
}

type OrderResponse struct {
	OrderID               string          `json:"orderId"`
	Status                string          `json:"status"`
	EstimatedDeliveryTime string          `json:"estimatedDeliveryTime"`
	TotalAmount           decimal.Decimal `json:"totalAmount"`
	TrackingURL           string          `json:"trackingUrl"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type OrderStatus struct {
	OrderID               string    `json:"orderId"`
	Status                string    `json:"status"`
	EstimatedDeliveryTime string    `json:"estimatedDeliveryTime"`
	DriverLocation        *Location `json:"driverLocation,omitempty"`
}

type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Query narrows a restaurant search. Zero values are left out of the request.
type Query struct {
	City      string
	Cuisine   string
	Latitude  *float64
	Longitude *float64
}

// Client calls the Talabat REST API with the configured bearer key.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	country string
	logger  *logger.Logger
}

func NewClient(cfg config.TalabatConfig, log *logger.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey:  cfg.APIKey,
		country: cfg.Country,
		logger:  log,
	}
}

// Configured reports whether both the API key and base URL are set.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.baseURL != ""
}

func (c *Client) Restaurants(ctx context.Context, q Query) ([]Restaurant, error) {
	params := url.Values{}
	if c.country != "" {
		params.Set("country", c.country)
	}
	if q.City != "" {
		params.Set("city", q.City)
	}
	if q.Cuisine != "" {
		params.Set("cuisine", q.Cuisine)
	}
	if q.Latitude != nil {
		params.Set("latitude", strconv.FormatFloat(*q.Latitude, 'f', -1, 64))
	}
	if q.Longitude != nil {
		params.Set("longitude", strconv.FormatFloat(*q.Longitude, 'f', -1, 64))
	}
	var out struct {
		Restaurants []Restaurant `json:"restaurants"`
	}
	if err := c.do(ctx, http.MethodGet, "/restaurants", params, nil, &out); err != nil {
		return nil, err
	}
	if out.Restaurants == nil {
		out.Restaurants = []Restaurant{}
	}
	return out.Restaurants, nil
}

func (c *Client) Restaurant(ctx context.Context, id string) (*Restaurant, error) {
	var out Restaurant
	if err := c.do(ctx, http.MethodGet, "/restaurants/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Menu(ctx context.Context, restaurantID string) ([]MenuItem, error) {
	var out struct {
		Items []MenuItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/restaurants/"+url.PathEscape(restaurantID)+"/menu", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []MenuItem{}
	}
	return out.Items, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	var out OrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", nil, req, &out); err != nil {
		return nil, err
	}
	c.logger.Info("TALABAT", fmt.Sprintf("Order %s placed at restaurant %s (%s)", out.OrderID, req.RestaurantID, out.Status))
	return &out, nil
}

func (c *Client) OrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	var out OrderStatus
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID, reason string) (*CancelResult, error) {
	if reason == "" {
		reason = "Customer request"
	}
	body := map[string]string{"reason": reason}
	var out CancelResult
	if err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/cancel", nil, body, &out); err != nil {
		return nil, err
	}
	c.logger.Info("TALABAT", fmt.Sprintf("Order %s cancelled: %s", orderID, reason))
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	c.logger.Debug("TALABAT", fmt.Sprintf("%s %s", method, endpoint))

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode talabat request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		c.logger.Error("TALABAT", fmt.Sprintf("Failed to create request: %v", err))
		return fmt.Errorf("failed to create talabat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("TALABAT", fmt.Sprintf("Talabat unreachable: %v", err))
		return utils.Unavailable("TALABAT_CONNECTION_ERROR", "Failed to connect to Talabat")
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Error("TALABAT", fmt.Sprintf("Failed to close response body: %v", err))
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Error("TALABAT", fmt.Sprintf("Failed to decode %s response: %v", path, err))
		return utils.Unavailable("TALABAT_CONNECTION_ERROR", "Talabat returned an unreadable response")
	}
	return nil
}

// apiError keeps the upstream status and message for the caller.
func (c *Client) apiError(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &payload)
	message := payload.Message
	if message == "" {
		message = "Talabat API error"
	}
	c.logger.Warn("TALABAT", fmt.Sprintf("Talabat returned status %d: %s", resp.StatusCode, message))

	kind := utils.KindInvalid
	switch {
	case resp.StatusCode == http.StatusNotFound:
		kind = utils.KindNotFound
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		kind = utils.KindUnavailable
	}
	appErr := utils.NewError(kind, "TALABAT_API_ERROR", message)
	appErr.Details = map[string]interface{}{"upstream_status": resp.StatusCode}
	return appErr
}
