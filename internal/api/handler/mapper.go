package handler

import (
	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

// --- Request → Service input ---

// toCredential picks the credential variant named by req.Mode. The validator
// has already restricted Mode to the known values.
func toCredential(req signInRequest) domain.Credential {
	switch domain.SignInMode(req.Mode) {
	case domain.ModeEmail:
		return domain.EmailCredential{Email: req.Email, Password: req.Password}
	case domain.ModeUsername:
		return domain.UsernameCredential{Username: req.Username, Password: req.Password}
	case domain.ModePhone:
		return domain.PhoneCredential{Phone: req.Phone, OTP: req.OTP}
	case domain.ModePasswordless:
		return domain.PasswordlessCredential{Email: req.Email}
	case domain.ModeSocial:
		return domain.SocialCredential{Provider: req.Provider, AccessToken: req.AccessToken}
	default:
		return nil
	}
}

func toSignUpInput(req signUpRequest) ports.SignUpInput {
	return ports.SignUpInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Phone:           req.Phone,
		DisplayName:     req.DisplayName,
	}
}

func toCreateProductInput(req createProductRequest, ownerID string) ports.CreateProductInput {
	return ports.CreateProductInput{
		OwnerID:      ownerID,
		Name:         req.Name,
		Price:        req.Price,
		Description:  req.Description,
		Category:     req.Category,
		DeliveryTime: req.DeliveryTime,
		Images:       req.Images,
	}
}

func toProductUpdate(req updateProductRequest) ports.ProductUpdate {
	return ports.ProductUpdate{
		Name:         req.Name,
		Price:        req.Price,
		Description:  req.Description,
		Category:     req.Category,
		DeliveryTime: req.DeliveryTime,
		Images:       req.Images,
	}
}

func toSendMessageInput(req sendMessageRequest, s *domain.Session) ports.SendMessageInput {
	return ports.SendMessageInput{
		ThreadID:    req.ThreadID,
		ProductID:   req.ProductID,
		SenderID:    s.UserID,
		SenderEmail: s.Email,
		Text:        req.Text,
	}
}

func toProfileUpdate(req updateProfileRequest) ports.ProfileUpdate {
	return ports.ProfileUpdate{DisplayName: req.DisplayName, Bio: req.Bio}
}

// --- Service result → Response ---

func toDepositResponse(r *ports.DepositResult) depositResponse {
	return depositResponse{Deposit: r.Deposit, Balance: r.Balance, AlreadyApplied: r.AlreadyApplied}
}
